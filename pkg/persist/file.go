package persist

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
)

// FileStore keeps one JSON file per component under a directory. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// half-written snapshot behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed snapshot store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(component string) string {
	return filepath.Join(s.dir, component+".json")
}

func (s *FileStore) Load(component string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(component))
	if os.IsNotExist(err) {
		return nil, notFound(component)
	}
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to read snapshot"),
			errors.Fields{"component": component, "path": s.path(component)},
		)
	}
	return data, nil
}

func (s *FileStore) Save(component string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(component)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to create snapshot directory"),
			errors.Fields{"component": component, "dir": s.dir},
		)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to write snapshot"),
			errors.Fields{"component": component, "path": tmpPath},
		)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to replace snapshot"),
			errors.Fields{"component": component, "path": path},
		)
	}

	return nil
}

func (s *FileStore) Delete(component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(component))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to delete snapshot"),
			errors.Fields{"component": component},
		)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
