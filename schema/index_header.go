package schema

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dot5enko/volume-block-index/bits"
	"github.com/google/uuid"
)

// index file on disk

// *--------------------------------*
// | header (IndexHeaderSize)		|
// *--------------------------------*
// | file block 0 (FileBlockSize)	|
// | file block 1					|
// | ...							|
// | file block n-1					|
// *--------------------------------*

// "VBIX" in little endian
const IndexMagic uint32 = 0x58494256

const CurrentIndexVersion uint16 = 1

// magic + version + header length + num blocks + data type (padded to 8) + dims + block dims +
// empty voxels + avg/min/max/total + uid + blocks checksum
const IndexHeaderSize = 4 + 2 + 2 + 3*8 + 8 + 3*8 + 3*8 + 8 + 4*8 + 16 + 8

type IndexFileHeader struct {
	Magic        uint32
	Version      uint16
	HeaderLength uint16

	NumBlocks Vec3
	DataType  DataType

	Dims      Vec3
	BlockDims Vec3

	EmptyVoxels uint64

	Avg   float64
	Min   float64
	Max   float64
	Total float64

	Uid uuid.UUID

	// xxhash64 over the encoded block records
	BlocksChecksum uint64
}

func NewIndexFileHeader(volume *VolumeDescriptor, typ DataType) IndexFileHeader {
	return IndexFileHeader{
		Magic:        IndexMagic,
		Version:      CurrentIndexVersion,
		HeaderLength: IndexHeaderSize,
		NumBlocks:    volume.NumBlocks,
		DataType:     typ,
		Dims:         volume.Dims,
		BlockDims:    volume.BlockDims,
		EmptyVoxels:  volume.EmptyVoxels,
		Avg:          volume.Avg,
		Min:          volume.Min,
		Max:          volume.Max,
		Total:        volume.Total,
		Uid:          uuid.New(),
	}
}

func (header *IndexFileHeader) TotalBlocks() uint64 {
	return header.NumBlocks.Product()
}

// Volume rebuilds the descriptor persisted in the header.
func (header *IndexFileHeader) Volume() *VolumeDescriptor {
	return &VolumeDescriptor{
		Dims:        header.Dims,
		BlockDims:   header.BlockDims,
		NumBlocks:   header.NumBlocks,
		Min:         header.Min,
		Max:         header.Max,
		Avg:         header.Avg,
		Total:       header.Total,
		EmptyVoxels: header.EmptyVoxels,
	}
}

// FromBytes decodes the header. Only the magic is validated here, version
// handling is left to the caller.
func (header *IndexFileHeader) FromBytes(reader *bits.BitsReader) (topErr error) {

	if header.Magic, topErr = reader.ReadU32(); topErr != nil {
		return fmt.Errorf("unable to decode index header magic: %w", topErr)
	}

	if header.Magic != IndexMagic {
		return fmt.Errorf("%w: bad magic 0x%08x", ErrCorruptIndex, header.Magic)
	}

	if header.Version, topErr = reader.ReadU16(); topErr != nil {
		return fmt.Errorf("unable to decode index header version: %w", topErr)
	}
	if header.HeaderLength, topErr = reader.ReadU16(); topErr != nil {
		return fmt.Errorf("unable to decode index header length: %w", topErr)
	}

	if header.HeaderLength < IndexHeaderSize {
		return fmt.Errorf("%w: header length %d, expected at least %d", ErrCorruptIndex, header.HeaderLength, IndexHeaderSize)
	}

	if header.NumBlocks, topErr = readVec3(reader); topErr != nil {
		return fmt.Errorf("unable to decode index header block counts: %w", topErr)
	}

	typeCode, typeErr := reader.ReadU32()
	if typeErr != nil {
		return fmt.Errorf("unable to decode index header data type: %w", typeErr)
	}
	header.DataType = DataType(typeCode)
	if !header.DataType.Valid() {
		return fmt.Errorf("%w: data type code %d", ErrCorruptIndex, typeCode)
	}
	// reserved
	if topErr = reader.Skip(4); topErr != nil {
		return topErr
	}

	if header.Dims, topErr = readVec3(reader); topErr != nil {
		return fmt.Errorf("unable to decode index header dims: %w", topErr)
	}
	if header.BlockDims, topErr = readVec3(reader); topErr != nil {
		return fmt.Errorf("unable to decode index header block dims: %w", topErr)
	}
	if header.EmptyVoxels, topErr = reader.ReadU64(); topErr != nil {
		return topErr
	}

	var stats [4]float64
	if topErr = reader.ReadF64s(stats[:]); topErr != nil {
		return fmt.Errorf("unable to decode index header statistics: %w", topErr)
	}
	header.Avg, header.Min, header.Max, header.Total = stats[0], stats[1], stats[2], stats[3]

	if header.Uid, topErr = reader.ReadUUID(); topErr != nil {
		return fmt.Errorf("unable to decode index header uid: %w", topErr)
	}
	if header.BlocksChecksum, topErr = reader.ReadU64(); topErr != nil {
		return topErr
	}

	// headers written by newer versions may carry extra fields
	if extra := int(header.HeaderLength) - IndexHeaderSize; extra > 0 {
		if topErr = reader.Skip(extra); topErr != nil {
			return topErr
		}
	}

	return nil
}

func (header *IndexFileHeader) WriteTo(bw *bits.BitWriter) (int, error) {

	bw.PutUint32(header.Magic)
	bw.PutUint16(header.Version)
	bw.PutUint16(header.HeaderLength)

	putVec3(bw, header.NumBlocks)

	bw.PutUint32(uint32(header.DataType))
	bw.Pad(4)

	putVec3(bw, header.Dims)
	putVec3(bw, header.BlockDims)

	bw.PutUint64(header.EmptyVoxels)

	bw.PutFloat64s(header.Avg, header.Min, header.Max, header.Total)

	if _, err := bw.Write(header.Uid[:]); err != nil {
		return 0, fmt.Errorf("failed to write index uid: %w", err)
	}

	bw.PutUint64(header.BlocksChecksum)

	return bw.Position(), nil
}

// Encode writes the header into w as one IndexHeaderSize record.
func (header *IndexFileHeader) Encode(w io.Writer, order binary.ByteOrder) error {
	var buf [IndexHeaderSize]byte
	bw := bits.NewEncodeBuffer(buf[:], order)

	if _, err := header.WriteTo(&bw); err != nil {
		return err
	}

	_, err := w.Write(bw.Bytes())
	return err
}
