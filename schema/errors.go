package schema

import "errors"

var (
	ErrIO              = errors.New("io error")
	ErrCorruptIndex    = errors.New("corrupt index file")
	ErrVersionMismatch = errors.New("index file version mismatch")
	ErrUnknownDataType = errors.New("unknown data type")
	ErrEmptyEdgeBlock  = errors.New("block layout leaves an empty edge block")
	ErrInvalidLayout   = errors.New("invalid volume layout")
)
