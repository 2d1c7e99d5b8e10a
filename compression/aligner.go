package compression

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

var ErrLayoutMismatch = errors.New("record layout does not match its encoding")

type FieldLayout struct {
	Name   string
	Offset uintptr
	Size   uintptr
	Align  uintptr
	// implicit padding between this field and the next one
	Padding uintptr
}

// RecordLayout is the in-memory layout of a fixed size record next to the
// size it would have with its fields ordered by descending alignment.
type RecordLayout struct {
	Name        string
	Fields      []FieldLayout
	Size        uintptr
	OptimalSize uintptr
}

func (l RecordLayout) WastedBytes() uintptr {
	return l.Size - l.OptimalSize
}

func (l RecordLayout) IsWellAligned() bool {
	return l.Size == l.OptimalSize
}

// Padding is the total of implicit padding, trailing padding included.
func (l RecordLayout) Padding() uintptr {
	var total uintptr
	for _, f := range l.Fields {
		total += f.Padding
	}
	return total
}

func alignUp(offset, align uintptr) uintptr {
	if rem := offset % align; rem != 0 {
		return offset + align - rem
	}
	return offset
}

func LayoutOf(v any) (RecordLayout, error) {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return RecordLayout{}, fmt.Errorf("%w: %v is not a struct", ErrLayoutMismatch, t)
	}

	layout := RecordLayout{
		Name:   t.Name(),
		Fields: make([]FieldLayout, t.NumField()),
		Size:   t.Size(),
	}

	maxAlign := uintptr(1)
	for i := range layout.Fields {
		sf := t.Field(i)
		layout.Fields[i] = FieldLayout{
			Name:   sf.Name,
			Offset: sf.Offset,
			Size:   sf.Type.Size(),
			Align:  uintptr(sf.Type.Align()),
		}
		maxAlign = max(maxAlign, layout.Fields[i].Align)
	}

	for i := range layout.Fields {
		f := &layout.Fields[i]
		next := layout.Size
		if i+1 < len(layout.Fields) {
			next = layout.Fields[i+1].Offset
		}
		f.Padding = next - f.Offset - f.Size
	}

	// descending alignment, larger fields first on ties
	ordered := slices.Clone(layout.Fields)
	slices.SortStableFunc(ordered, func(a, b FieldLayout) int {
		if a.Align != b.Align {
			return int(b.Align) - int(a.Align)
		}
		return int(b.Size) - int(a.Size)
	})

	var offset uintptr
	for _, f := range ordered {
		offset = alignUp(offset, f.Align) + f.Size
	}
	layout.OptimalSize = alignUp(offset, maxAlign)

	return layout, nil
}

// CheckRecordLayout verifies that v needs no reordering and occupies
// exactly encodedSize bytes in memory, as the index records do.
func CheckRecordLayout(v any, encodedSize int) (RecordLayout, error) {
	layout, err := LayoutOf(v)
	if err != nil {
		return layout, err
	}

	if !layout.IsWellAligned() {
		return layout, fmt.Errorf("%w: %s wastes %d bytes", ErrLayoutMismatch, layout.Name, layout.WastedBytes())
	}
	if layout.Size != uintptr(encodedSize) {
		return layout, fmt.Errorf("%w: %s is %d bytes in memory, %d encoded", ErrLayoutMismatch, layout.Name, layout.Size, encodedSize)
	}
	return layout, nil
}
