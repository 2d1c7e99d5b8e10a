//go:build linux

package io

import "golang.org/x/sys/unix"

// AdviseSequential tells the kernel the file will be read front to back so
// read-ahead can be widened.
func (f *FileReader) AdviseSequential() error {
	if f.opened == false {
		return ErrNotOpened
	}

	return unix.Fadvise(int(f.file.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// AdviseRandom is used for block payload reads, which jump between rows.
func (f *FileReader) AdviseRandom() error {
	if f.opened == false {
		return ErrNotOpened
	}

	return unix.Fadvise(int(f.file.Fd()), 0, 0, unix.FADV_RANDOM)
}
