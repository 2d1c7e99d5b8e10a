package io

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dot5enko/volume-block-index/bits"
	"github.com/dot5enko/volume-block-index/schema"
)

// DumpNumbersArrayBlock writes arr as a headerless raw volume in native
// byte order.
func DumpNumbersArrayBlock[T schema.NumericTypes](path string, arr []T) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, err)
	}
	defer f.Close()

	var writtenBytes int
	writtenBytes, err = f.Write(bits.ArrayAsBytes(arr))

	slog.Debug("raw volume written", "bytes", writtenBytes, "path", path)

	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, err)
	}

	return f.Sync()
}
