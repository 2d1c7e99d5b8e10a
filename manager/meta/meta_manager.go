package meta

import (
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// IndexRegistry keeps loaded index files by path. Concurrent loads of the
// same path share one read of the file.
type IndexRegistry struct {
	indexes map[string]*IndexFile
	lock    sync.RWMutex

	loadGroup singleflight.Group

	storagePath string
	logger      *slog.Logger
}

func NewIndexRegistry(storagePath string, logger *slog.Logger) *IndexRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexRegistry{
		indexes:     map[string]*IndexFile{},
		storagePath: storagePath,
		logger:      logger,
	}
}

func (m *IndexRegistry) key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (m *IndexRegistry) Get(path string) *IndexFile {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.indexes[m.key(path)]
}

// Add registers an index that was built or saved in this process.
func (m *IndexRegistry) Add(path string, index *IndexFile) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.indexes[m.key(path)] = index
}

func (m *IndexRegistry) Forget(path string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.indexes, m.key(path))
}

// Load returns the cached index for path or reads it from disk.
func (m *IndexRegistry) Load(path string) (*IndexFile, error) {

	if cached := m.Get(path); cached != nil {
		return cached, nil
	}

	key := m.key(path)

	v, err, shared := m.loadGroup.Do(key, func() (any, error) {

		index, loadErr := FromBinaryIndexFile(path, m.logger)
		if loadErr != nil {
			return nil, loadErr
		}

		m.Add(path, index)

		m.logger.Info("loaded index from disk",
			"path", path,
			"uid", index.Header.Uid.String(),
			"blocks", len(index.Blocks),
			"stale", index.Stale,
		)

		return index, nil
	})

	if err != nil {
		return nil, err
	}

	if shared {
		m.logger.Debug("index load shared with a concurrent caller", "path", path)
	}

	return v.(*IndexFile), nil
}

func (m *IndexRegistry) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.indexes)
}
