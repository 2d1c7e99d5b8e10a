package io

import (
	"fmt"
	goio "io"
	"os"

	"github.com/dot5enko/volume-block-index/schema"
	"github.com/edsrzf/mmap-go"
)

// MmapSource serves block rows straight out of a read-only mapping of the
// raw volume.
type MmapSource struct {
	f    *os.File
	data mmap.MMap
}

func OpenMmapSource(path string) (*MmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schema.ErrIO, err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap %s: %w", schema.ErrIO, path, err)
	}

	return &MmapSource{f: f, data: m}, nil
}

func (s *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= int64(len(s.data)) {
		return 0, goio.EOF
	}

	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, goio.EOF
	}
	return n, nil
}

func (s *MmapSource) Size() int64 {
	return int64(len(s.data))
}

func (s *MmapSource) Close() error {
	if s.data != nil {
		if err := s.data.Unmap(); err != nil {
			return err
		}
		s.data = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
