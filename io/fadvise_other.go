//go:build !linux

package io

func (f *FileReader) AdviseSequential() error {
	if f.opened == false {
		return ErrNotOpened
	}
	return nil
}

func (f *FileReader) AdviseRandom() error {
	if f.opened == false {
		return ErrNotOpened
	}
	return nil
}
