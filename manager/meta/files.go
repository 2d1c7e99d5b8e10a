package meta

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	IndexFileExtension      = ".vbi"
	ASCIIIndexFileExtension = ".vbi.json"
)

func (m *IndexRegistry) getAbsStoragePath(segments ...string) string {

	pathSegments := []string{m.storagePath}
	pathSegments = append(pathSegments, segments...)

	return filepath.Join(pathSegments...)
}

func (m *IndexRegistry) CreateStoragePathIfNotExists(segments ...string) (string, error) {
	storagePath := m.getAbsStoragePath(segments...)

	if _, err := os.Stat(storagePath); err != nil {
		storageFolderErr := os.MkdirAll(storagePath, 0755)
		if storageFolderErr != nil {

			m.logger.Error("unable to create directory", "path", storagePath, "err", storageFolderErr)

			return "", storageFolderErr
		} else {
			m.logger.Debug("created storage folder", "path", storagePath)
		}
	}

	return storagePath, nil
}

func volumeName(rawPath string) string {
	base := filepath.Base(rawPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IndexPathFor is where the index of a raw volume lives inside the storage
// folder. Without a storage folder the index sits next to the raw file.
func (m *IndexRegistry) IndexPathFor(rawPath string) string {
	if m.storagePath == "" {
		return strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + IndexFileExtension
	}
	return m.getAbsStoragePath(volumeName(rawPath) + IndexFileExtension)
}

func (m *IndexRegistry) ASCIIIndexPathFor(rawPath string) string {
	return strings.TrimSuffix(m.IndexPathFor(rawPath), IndexFileExtension) + ASCIIIndexFileExtension
}
