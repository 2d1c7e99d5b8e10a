package manager

import (
	"log/slog"
	"runtime"

	"github.com/dot5enko/volume-block-index/manager/meta"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	// folder for index files, empty keeps each index next to its raw volume
	PathToStorage string

	BufferPoolBytes int
	BufferCount     int
	Workers         int

	CPUCacheBlocks int
	GPUCacheBlocks int

	CompressIndex bool

	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

const (
	DefaultBufferPoolBytes = 64 << 20
	DefaultBufferCount     = 4
	DefaultCPUCacheBlocks  = 64
	DefaultGPUCacheBlocks  = 32
)

// WithDefaults fills every zero field.
func (c Config) WithDefaults() Config {
	if c.BufferPoolBytes <= 0 {
		c.BufferPoolBytes = DefaultBufferPoolBytes
	}
	if c.BufferCount <= 0 {
		c.BufferCount = DefaultBufferCount
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.CPUCacheBlocks <= 0 {
		c.CPUCacheBlocks = DefaultCPUCacheBlocks
	}
	if c.GPUCacheBlocks <= 0 {
		c.GPUCacheBlocks = DefaultGPUCacheBlocks
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type Manager struct {
	config Config
	logger *slog.Logger

	Indexes *meta.IndexRegistry
}

func New(config Config) *Manager {

	config = config.WithDefaults()

	return &Manager{
		config:  config,
		logger:  config.Logger,
		Indexes: meta.NewIndexRegistry(config.PathToStorage, config.Logger),
	}
}

func (m *Manager) Config() Config {
	return m.config
}

// LoadIndex returns the index at path, reading it at most once per process.
func (m *Manager) LoadIndex(path string) (*meta.IndexFile, error) {
	return m.Indexes.Load(path)
}
