package compression

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dot5enko/volume-block-index/schema"
)

func compressFrame(t *testing.T, src []byte) []byte {
	t.Helper()

	var compressed bytes.Buffer
	zw, err := NewFrameWriter(&compressed)
	if err != nil {
		t.Fatalf("frame writer: %v", err)
	}
	if _, err := zw.Write(src); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close frame: %v", err)
	}
	return compressed.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("voxel-row "), 4096)

	compressed := compressFrame(t, src)

	if !IsLz4Frame(compressed) {
		t.Errorf("compressed output does not start with the lz4 frame magic")
	}
	if len(compressed) >= len(src) {
		t.Errorf("repetitive input did not shrink: %d >= %d", len(compressed), len(src))
	}

	r, framed := OpenFrame(bufio.NewReader(bytes.NewReader(compressed)))
	if !framed {
		t.Fatalf("frame not detected")
	}

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Errorf("round trip changed the payload")
	}
}

func TestOpenFramePassesPlainInput(t *testing.T) {
	src := []byte("VBIX plain index bytes")

	r, framed := OpenFrame(bufio.NewReader(bytes.NewReader(src)))
	if framed {
		t.Errorf("plain input detected as a frame")
	}

	out, err := io.ReadAll(r)
	if err != nil || !bytes.Equal(out, src) {
		t.Errorf("plain input altered: %q (%v)", out, err)
	}
}

func TestOpenFrameCorruptPayload(t *testing.T) {
	compressed := compressFrame(t, bytes.Repeat([]byte{1, 2, 3, 4}, 1000))
	compressed[len(compressed)/2] ^= 0xff

	r, _ := OpenFrame(bufio.NewReader(bytes.NewReader(compressed)))
	if _, err := io.ReadAll(r); err == nil {
		t.Errorf("expected an error for a damaged frame")
	}
}

func TestIsLz4FrameShortInput(t *testing.T) {
	if IsLz4Frame([]byte{0x04, 0x22}) {
		t.Errorf("partial magic must not be detected as a frame")
	}
}

func TestIndexRecordsMatchTheirEncoding(t *testing.T) {
	records := []struct {
		v       any
		encoded int
	}{
		{schema.FileBlock{}, schema.FileBlockSize},
		{&schema.IndexFileHeader{}, schema.IndexHeaderSize},
	}

	for _, r := range records {
		layout, err := CheckRecordLayout(r.v, r.encoded)
		if err != nil {
			t.Errorf("%v", err)
			continue
		}
		if !layout.IsWellAligned() {
			t.Errorf("%s: %d bytes, %d with optimal field order", layout.Name, layout.Size, layout.OptimalSize)
		}
	}

	layout, _ := LayoutOf(schema.FileBlock{})
	if layout.Padding() != 0 {
		t.Errorf("FileBlock carries %d bytes of implicit padding", layout.Padding())
	}
}

func TestLayoutDetectsPadding(t *testing.T) {
	type padded struct {
		A uint8
		B uint64
		C uint8
	}

	layout, err := LayoutOf(padded{})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if layout.IsWellAligned() {
		t.Errorf("expected padding to be reported")
	}
	if layout.WastedBytes() != 8 {
		t.Errorf("expected 8 wasted bytes, got %d", layout.WastedBytes())
	}
	if layout.Padding() != 14 {
		t.Errorf("expected 14 padding bytes, got %d", layout.Padding())
	}
	if layout.Fields[0].Padding != 7 || layout.Fields[2].Padding != 7 {
		t.Errorf("unexpected per field padding %+v", layout.Fields)
	}

	if _, err := CheckRecordLayout(padded{}, 24); !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch, got %v", err)
	}
	if _, err := LayoutOf(42); !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch for a non struct, got %v", err)
	}
}
