package schema

import (
	"fmt"
	"strings"
)

type DataType uint8

const (
	Int8DataType DataType = iota
	Uint8DataType
	Int16DataType
	Uint16DataType
	Int32DataType
	Uint32DataType
	Float32DataType
)

func (d DataType) String() string {
	switch d {
	case Int8DataType:
		return "int8"
	case Uint8DataType:
		return "uint8"
	case Int16DataType:
		return "int16"
	case Uint16DataType:
		return "uint16"
	case Int32DataType:
		return "int32"
	case Uint32DataType:
		return "uint32"
	case Float32DataType:
		return "float32"
	default:
		return ""
	}
}

func (d DataType) Size() int {
	switch d {
	case Int8DataType, Uint8DataType:
		return 1
	case Int16DataType, Uint16DataType:
		return 2
	case Int32DataType, Uint32DataType, Float32DataType:
		return 4
	default:
		panic(fmt.Sprintf("unknown data type %d", uint8(d)))
	}
}

func (d DataType) Valid() bool {
	return d <= Float32DataType
}

// sidecar files describe voxels with C type names, so both spellings are accepted
var dataTypeNames = map[string]DataType{
	"int8":           Int8DataType,
	"char":           Int8DataType,
	"signed char":    Int8DataType,
	"uint8":          Uint8DataType,
	"uchar":          Uint8DataType,
	"unsigned char":  Uint8DataType,
	"int16":          Int16DataType,
	"short":          Int16DataType,
	"uint16":         Uint16DataType,
	"ushort":         Uint16DataType,
	"unsigned short": Uint16DataType,
	"int32":          Int32DataType,
	"int":            Int32DataType,
	"uint32":         Uint32DataType,
	"uint":           Uint32DataType,
	"unsigned int":   Uint32DataType,
	"float32":        Float32DataType,
	"float":          Float32DataType,
}

func ParseDataType(name string) (DataType, error) {
	typ, ok := dataTypeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDataType, name)
	}
	return typ, nil
}
