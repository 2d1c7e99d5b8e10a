package compression

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4 frame magic as it appears on disk
var Lz4FrameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

func IsLz4Frame(head []byte) bool {
	return bytes.HasPrefix(head, Lz4FrameMagic)
}

// NewFrameWriter starts an lz4 frame with a content checksum on w. Closing
// the returned writer ends the frame, w itself stays open.
func NewFrameWriter(w io.Writer) (*lz4.Writer, error) {
	zw := lz4.NewWriter(w)

	if err := zw.Apply(lz4.ChecksumOption(true)); err != nil {
		return nil, err
	}

	return zw, nil
}

// OpenFrame unwraps an lz4 frame when br starts with one and returns br
// untouched otherwise.
func OpenFrame(br *bufio.Reader) (io.Reader, bool) {
	head, _ := br.Peek(len(Lz4FrameMagic))
	if !IsLz4Frame(head) {
		return br, false
	}

	return lz4.NewReader(br), true
}
