package manager

import (
	"github.com/dot5enko/volume-block-index/io"
	"github.com/dot5enko/volume-block-index/manager/cache"
	"github.com/dot5enko/volume-block-index/manager/meta"
)

// VolumeCache is a BlockCache bound to the raw volume file it reads from.
type VolumeCache struct {
	*cache.BlockCache

	closer interface{ Close() error }
}

// Close stops the loader, waits for it and releases the raw file.
func (v *VolumeCache) Close() error {
	v.Stop()
	v.Wait()
	return v.closer.Close()
}

// OpenCache serves blocks of index from rawPath. With useMmap the raw file is
// mapped instead of read row by row through the file descriptor.
func (m *Manager) OpenCache(index *meta.IndexFile, rawPath string, useMmap bool, uploader cache.Uploader) (*VolumeCache, error) {

	if index.Stale {
		m.logger.Warn("serving blocks from a stale index, regenerate it", "path", index.Path)
	}

	cfg := cache.BlockCacheConfig{
		CPUBlocks:  m.config.CPUCacheBlocks,
		GPUBlocks:  m.config.GPUCacheBlocks,
		Logger:     m.logger,
		Registerer: m.config.Registerer,
	}

	if useMmap {
		source, err := io.OpenMmapSource(rawPath)
		if err != nil {
			return nil, err
		}

		c, err := cache.NewBlockCache(index.Blocks, index.Header.Dims, index.DataType(), source, uploader, cfg)
		if err != nil {
			source.Close()
			return nil, err
		}
		return &VolumeCache{BlockCache: c, closer: source}, nil
	}

	file := io.NewFileReader(rawPath)
	if err := file.Open(); err != nil {
		return nil, err
	}
	if err := file.AdviseRandom(); err != nil {
		m.logger.Debug("random read advice rejected", "path", rawPath, "err", err)
	}

	c, err := cache.NewBlockCache(index.Blocks, index.Header.Dims, index.DataType(), file, uploader, cfg)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &VolumeCache{BlockCache: c, closer: file}, nil
}
