package io

import (
	"errors"
	goio "io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dot5enko/volume-block-index/schema"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "volume.raw")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileReaderSequentialReads(t *testing.T) {
	path := writeTemp(t, []byte("0123456789"))

	f := NewFileReader(path)
	if err := f.Open(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	defer f.Close()

	if size, _ := f.Size(); size != 10 {
		t.Errorf("expected size 10, got %d", size)
	}

	out := make([]byte, 4)

	n, eof, err := f.Read(out)
	if n != 4 || eof || err != nil {
		t.Errorf("first read: n=%d eof=%v err=%v", n, eof, err)
	}

	f.Read(out)

	n, eof, err = f.Read(out)
	if n != 2 || !eof || err != nil {
		t.Errorf("short read: n=%d eof=%v err=%v", n, eof, err)
	}
	if string(out[:n]) != "89" {
		t.Errorf("unexpected tail %q", out[:n])
	}

	if err := f.Rewind(); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if n, _, _ = f.Read(out); n != 4 || string(out) != "0123" {
		t.Errorf("read after rewind: %q", out[:n])
	}
}

func TestFileReaderReadAt(t *testing.T) {
	path := writeTemp(t, []byte("abcdefgh"))

	f := NewFileReader(path)
	if _, err := f.ReadAt(make([]byte, 1), 0); !errors.Is(err, ErrNotOpened) {
		t.Errorf("expected ErrNotOpened, got %v", err)
	}

	if err := f.Open(); err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var src goio.ReaderAt = f

	row := make([]byte, 3)
	if n, err := src.ReadAt(row, 2); n != 3 || err != nil || string(row) != "cde" {
		t.Errorf("read at 2: n=%d err=%v %q", n, err, row)
	}
	if n, err := src.ReadAt(row, 6); n != 2 || err == nil {
		t.Errorf("read past end: n=%d err=%v", n, err)
	}
}

func TestFileReaderMissingFile(t *testing.T) {
	f := NewFileReader(filepath.Join(t.TempDir(), "missing.raw"))

	if err := f.Open(); !errors.Is(err, schema.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
	if _, _, err := f.Read(make([]byte, 1)); !errors.Is(err, ErrNotOpened) {
		t.Errorf("expected ErrNotOpened, got %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("close of unopened reader: %v", err)
	}
}

func TestMmapSourceReadAt(t *testing.T) {
	path := writeTemp(t, []byte("abcdefgh"))

	src, err := OpenMmapSource(path)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	defer src.Close()

	if src.Size() != 8 {
		t.Errorf("expected size 8, got %d", src.Size())
	}

	row := make([]byte, 3)
	if n, err := src.ReadAt(row, 5); n != 3 || err != nil || string(row) != "fgh" {
		t.Errorf("read at 5: n=%d err=%v %q", n, err, row)
	}
	if n, err := src.ReadAt(row, 6); n != 2 || err != goio.EOF {
		t.Errorf("read past end: n=%d err=%v", n, err)
	}
	if n, err := src.ReadAt(row, 8); n != 0 || err != goio.EOF {
		t.Errorf("read at end: n=%d err=%v", n, err)
	}

	if err := src.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestMmapSourceMissingFile(t *testing.T) {
	if _, err := OpenMmapSource(filepath.Join(t.TempDir(), "missing.raw")); !errors.Is(err, schema.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestDumpNumbersArrayBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.raw")

	if err := DumpNumbersArrayBlock(path, []uint16{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 6 || data[0] != 1 || data[2] != 2 || data[4] != 3 {
		t.Errorf("unexpected bytes %v", data)
	}
}
