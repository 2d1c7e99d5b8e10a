package bits

import (
	"unsafe"
)

// MapBytesToArray reinterprets the first count elements of data as []T
// without copying. data must be aligned for T and hold voxels in the
// machine's native byte order.
func MapBytesToArray[T any](data []byte, count int) []T {

	if count == 0 {
		return nil
	}

	var sample T
	valueSize := int(unsafe.Sizeof(sample))

	if len(data) < count*valueSize {
		panic("not enough data")
	}

	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), count)
}

// ArrayAsBytes is the inverse of MapBytesToArray.
func ArrayAsBytes[T any](arr []T) []byte {

	if len(arr) == 0 {
		return nil
	}

	var sample T
	return unsafe.Slice((*byte)(unsafe.Pointer(&arr[0])), len(arr)*int(unsafe.Sizeof(sample)))
}
