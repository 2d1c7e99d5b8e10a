package meta

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/dot5enko/volume-block-index/bits"
	"github.com/dot5enko/volume-block-index/compression"
	"github.com/dot5enko/volume-block-index/schema"
)

var byteOrder = binary.LittleEndian

// upper bound for the up-front block allocation when the stream length is unknown
const maxPreallocBlocks = 1 << 20

// IndexFile is the persisted form of a built block index: a fixed header
// followed by one record per block in block index order.
type IndexFile struct {
	Header schema.IndexFileHeader
	Blocks []schema.FileBlock

	// Stale is set when the file was written by another format version.
	// The content is still usable but the index should be regenerated.
	Stale bool

	Path string
}

func FromBuilder(volume *schema.VolumeDescriptor, blocks []schema.FileBlock, typ schema.DataType) (*IndexFile, error) {

	if uint64(len(blocks)) != volume.TotalBlocks() {
		return nil, fmt.Errorf("%w: %d blocks for a %s grid", schema.ErrInvalidLayout, len(blocks), volume.NumBlocks)
	}

	f := &IndexFile{
		Header: schema.NewIndexFileHeader(volume, typ),
		Blocks: blocks,
	}
	f.Header.BlocksChecksum = f.blocksChecksum()

	return f, nil
}

func (f *IndexFile) Volume() *schema.VolumeDescriptor {
	return f.Header.Volume()
}

func (f *IndexFile) DataType() schema.DataType {
	return f.Header.DataType
}

func (f *IndexFile) Block(idx uint64) (*schema.FileBlock, bool) {
	if idx >= uint64(len(f.Blocks)) {
		return nil, false
	}
	return &f.Blocks[idx], true
}

// MaxBlockBytes is the payload size of the largest block.
func (f *IndexFile) MaxBlockBytes() int {
	return int(f.Header.BlockDims.Product()) * f.Header.DataType.Size()
}

// EmptyBlocks counts blocks flagged empty by the avg filter.
func (f *IndexFile) EmptyBlocks() int {
	count := 0
	for i := range f.Blocks {
		if f.Blocks[i].IsEmpty() {
			count++
		}
	}
	return count
}

func (f *IndexFile) eachEncodedBlock(cb func(record []byte) error) error {
	var record [schema.FileBlockSize]byte

	for i := range f.Blocks {
		bw := bits.NewEncodeBuffer(record[:], byteOrder)
		if _, err := f.Blocks[i].WriteTo(&bw); err != nil {
			return fmt.Errorf("unable to encode block %d: %w", i, err)
		}
		if err := cb(bw.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

func (f *IndexFile) blocksChecksum() uint64 {
	digest := xxhash.New()

	f.eachEncodedBlock(func(record []byte) error {
		digest.Write(record)
		return nil
	})

	return digest.Sum64()
}

// WriteBinaryIndexFile writes the header and then every block record.
// The checksum is refreshed first since blocks may have been filtered
// after the header was built.
func (f *IndexFile) WriteBinaryIndexFile(w io.Writer) error {

	f.Header.BlocksChecksum = f.blocksChecksum()

	bw := bufio.NewWriter(w)

	if err := f.Header.Encode(bw, byteOrder); err != nil {
		return fmt.Errorf("unable to write index header: %w", err)
	}

	writeErr := f.eachEncodedBlock(func(record []byte) error {
		_, err := bw.Write(record)
		return err
	})
	if writeErr != nil {
		return fmt.Errorf("unable to write block records: %w", writeErr)
	}

	return bw.Flush()
}

// WriteCompressedIndexFile writes the binary layout inside an lz4 frame.
func (f *IndexFile) WriteCompressedIndexFile(w io.Writer) error {
	zw, err := compression.NewFrameWriter(w)
	if err != nil {
		return fmt.Errorf("unable to start lz4 frame: %w", err)
	}

	if err := f.WriteBinaryIndexFile(zw); err != nil {
		return err
	}

	return zw.Close()
}

type asciiIndexFile struct {
	Version     uint16                   `json:"version"`
	Uid         string                   `json:"uid"`
	DataType    string                   `json:"data_type"`
	Volume      *schema.VolumeDescriptor `json:"volume"`
	EmptyBlocks int                      `json:"empty_blocks"`
	Blocks      []schema.FileBlock       `json:"blocks"`
}

// WriteASCIIIndexFile writes a human readable JSON dump. There is no loader
// for it.
func (f *IndexFile) WriteASCIIIndexFile(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(asciiIndexFile{
		Version:     f.Header.Version,
		Uid:         f.Header.Uid.String(),
		DataType:    f.Header.DataType.String(),
		Volume:      f.Volume(),
		EmptyBlocks: f.EmptyBlocks(),
		Blocks:      f.Blocks,
	})
}

// Save writes the index next to path and renames it into place, so a
// crash never leaves a half written index behind.
func (f *IndexFile) Save(path string, compressed bool) error {

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	if compressed {
		err = f.WriteCompressedIndexFile(tmp)
	} else {
		err = f.WriteBinaryIndexFile(tmp)
	}

	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", schema.ErrIO, path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, err)
	}

	f.Path = path
	return nil
}

// FromBinaryIndexFile loads an index written by WriteBinaryIndexFile or
// WriteCompressedIndexFile.
func FromBinaryIndexFile(path string, logger *slog.Logger) (*IndexFile, error) {

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schema.ErrIO, err)
	}
	defer file.Close()

	var sizeHint int64 = -1
	if info, statErr := file.Stat(); statErr == nil {
		sizeHint = info.Size()
	}

	f, err := readIndexFile(file, sizeHint, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f.Path = path
	return f, nil
}

// ReadIndexFile decodes an index from an arbitrary stream.
func ReadIndexFile(r io.Reader, logger *slog.Logger) (*IndexFile, error) {
	return readIndexFile(r, -1, logger)
}

func readIndexFile(r io.Reader, sizeHint int64, logger *slog.Logger) (*IndexFile, error) {

	if logger == nil {
		logger = slog.Default()
	}

	br := bufio.NewReaderSize(r, 64*1024)

	input, framed := compression.OpenFrame(br)
	if framed {
		sizeHint = -1
	}

	reader := bits.NewReader(input, byteOrder)

	f := &IndexFile{}

	if err := f.Header.FromBytes(reader); err != nil {
		if errors.Is(err, schema.ErrCorruptIndex) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: header: %w", schema.ErrCorruptIndex, err)
	}

	if f.Header.Version != schema.CurrentIndexVersion {
		f.Stale = true
		logger.Warn("index file version mismatch, regenerate the index",
			"version", f.Header.Version,
			"expected_version", schema.CurrentIndexVersion,
			"reason", schema.ErrVersionMismatch,
		)
	}

	total := f.Header.TotalBlocks()

	if sizeHint >= 0 {
		expected := int64(f.Header.HeaderLength) + int64(total)*schema.FileBlockSize
		if sizeHint < expected {
			return nil, fmt.Errorf("%w: %d bytes on disk, %d blocks need %d", schema.ErrCorruptIndex, sizeHint, total, expected)
		}
	}

	digest := xxhash.New()
	blocksReader := bits.NewReader(io.TeeReader(input, digest), byteOrder)

	f.Blocks = make([]schema.FileBlock, 0, min(total, maxPreallocBlocks))

	for i := uint64(0); i < total; i++ {
		var block schema.FileBlock

		if err := block.FromBytes(blocksReader); err != nil {
			return nil, fmt.Errorf("%w: block %d of %d: %w", schema.ErrCorruptIndex, i, total, err)
		}

		f.Blocks = append(f.Blocks, block)
	}

	if !f.Stale && digest.Sum64() != f.Header.BlocksChecksum {
		logger.Debug("index checksum mismatch", "header", spew.Sdump(f.Header))
		return nil, fmt.Errorf("%w: block checksum 0x%016x, header says 0x%016x", schema.ErrCorruptIndex, digest.Sum64(), f.Header.BlocksChecksum)
	}

	return f, nil
}
