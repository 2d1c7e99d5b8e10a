package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/dot5enko/volume-block-index/manager/cache"
	"github.com/dot5enko/volume-block-index/manager/meta"
	"github.com/dot5enko/volume-block-index/manager/stream"
	"github.com/dot5enko/volume-block-index/ops"
	"github.com/dot5enko/volume-block-index/schema"
)

type BuildRequest struct {
	RawPath   string
	Dims      schema.Vec3
	NumBlocks schema.Vec3
	DataType  schema.DataType

	// nil counts every voxel as relevant
	Relevance ops.Relevance

	// blocks whose avg falls outside [FilterMin, FilterMax] are flagged empty
	Filter    bool
	FilterMin float64
	FilterMax float64

	// defaults to the registry location for RawPath
	OutputPath string
	WriteASCII bool
}

type BuildResult struct {
	Index      *meta.IndexFile
	Path       string
	ASCIIPath  string
	BytesRead  uint64
	EmptyCount int
}

// BuildIndex streams the raw volume once, computes volume and block
// statistics and persists the index.
func (m *Manager) BuildIndex(ctx context.Context, req BuildRequest) (*BuildResult, error) {

	if !req.DataType.Valid() {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownDataType, req.DataType)
	}

	volume, err := schema.NewVolumeDescriptor(req.Dims, req.NumBlocks)
	if err != nil {
		return nil, err
	}

	relevance := req.Relevance
	if relevance == nil {
		relevance = ops.RelevanceFunc(func(float64) bool { return true })
	}

	elementSize := req.DataType.Size()

	pool, err := cache.NewBufferPool(m.config.BufferPoolBytes, m.config.BufferCount, elementSize)
	if err != nil {
		return nil, err
	}

	reader := stream.NewStreamReader(pool, elementSize, m.logger)
	if err := reader.Open(req.RawPath); err != nil {
		return nil, err
	}
	defer reader.Close()

	if size, sizeErr := reader.FileSize(); sizeErr == nil {
		declared := int64(volume.TotalVoxels()) * int64(elementSize)
		if size != declared {
			m.logger.Warn("data shape: raw volume size differs from the declared dimensions",
				"path", req.RawPath,
				"bytes", size,
				"declared_bytes", declared,
			)
		}
	}

	builder := NewBlockIndexBuilder(volume, req.DataType, m.config.Workers, m.logger)
	builder.InitBlocks()

	if err := reader.Start(ctx); err != nil {
		return nil, err
	}

	if err := builder.ComputeVolumeStatistics(ctx, reader, relevance); err != nil {
		return nil, err
	}

	result := &BuildResult{BytesRead: reader.BytesRead()}

	if req.Filter {
		result.EmptyCount, err = builder.FilterBlocks(req.FilterMin, req.FilterMax)
		if err != nil {
			return nil, err
		}
	}

	index, err := meta.FromBuilder(volume, builder.Blocks, req.DataType)
	if err != nil {
		return nil, err
	}

	result.Path = req.OutputPath
	if result.Path == "" {
		if m.config.PathToStorage != "" {
			if _, err := m.Indexes.CreateStoragePathIfNotExists(); err != nil {
				return nil, fmt.Errorf("%w: %w", schema.ErrIO, err)
			}
		}
		result.Path = m.Indexes.IndexPathFor(req.RawPath)
	}

	if err := index.Save(result.Path, m.config.CompressIndex); err != nil {
		return nil, err
	}

	if req.WriteASCII {
		result.ASCIIPath = m.Indexes.ASCIIIndexPathFor(req.RawPath)
		if err := writeASCII(index, result.ASCIIPath); err != nil {
			return nil, err
		}
	}

	m.Indexes.Add(result.Path, index)
	result.Index = index

	m.logger.Info("index built",
		"raw", req.RawPath,
		"index", result.Path,
		"uid", index.Header.Uid.String(),
		"blocks", len(index.Blocks),
		"empty_blocks", result.EmptyCount,
		"compressed", m.config.CompressIndex,
	)

	return result, nil
}

func writeASCII(index *meta.IndexFile, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrIO, err)
	}

	writeErr := index.WriteASCIIIndexFile(out)
	if closeErr := out.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("%w: %s: %w", schema.ErrIO, path, writeErr)
	}
	return nil
}
