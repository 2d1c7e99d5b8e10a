package io

import (
	"errors"
	"fmt"
	goio "io"
	"os"

	"github.com/dot5enko/volume-block-index/schema"
)

var ErrNotOpened = errors.New("file not opened")

// FileReader is a read-only handle on a raw volume. Read serves the
// sequential statistics pass, ReadAt the strided block loads.
type FileReader struct {
	path   string
	file   *os.File
	opened bool
}

func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

func (f *FileReader) Path() string {
	return f.path
}

func (f *FileReader) Open() (topErr error) {

	f.file, topErr = os.Open(f.path)
	if topErr != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, topErr)
	}

	f.opened = true

	return nil
}

func (f *FileReader) Close() error {
	if f.opened == false {
		return nil
	}

	f.opened = false
	return f.file.Close()
}

func (f *FileReader) Size() (int64, error) {
	if f.opened == false {
		return 0, ErrNotOpened
	}

	info, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", schema.ErrIO, err)
	}
	return info.Size(), nil
}

// Read fills out from the current cursor. It keeps reading until out is full
// or the file ends, so n < len(out) means end of file was reached.
func (f *FileReader) Read(out []byte) (n int, eof bool, err error) {
	if f.opened == false {
		return 0, false, ErrNotOpened
	}

	n, err = goio.ReadFull(f.file, out)

	switch {
	case err == nil:
		return n, false, nil
	case errors.Is(err, goio.EOF), errors.Is(err, goio.ErrUnexpectedEOF):
		return n, true, nil
	default:
		return n, false, fmt.Errorf("%w: %w", schema.ErrIO, err)
	}
}

// Rewind moves the cursor back to the start of the file.
func (f *FileReader) Rewind() error {
	if f.opened == false {
		return ErrNotOpened
	}

	_, err := f.file.Seek(0, goio.SeekStart)
	return err
}

// ReadAt implements io.ReaderAt over the opened file. A block cache reads one
// strided row per call.
func (f *FileReader) ReadAt(p []byte, off int64) (int, error) {
	if f.opened == false {
		return 0, ErrNotOpened
	}
	return f.file.ReadAt(p, off)
}
