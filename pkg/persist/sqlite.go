package persist

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
)

// SQLiteStore keeps snapshots in a single SQLite table, one row per
// component. If path is ":memory:", the database lives in-process.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	initialized sync.Once
}

// NewSQLiteStore creates a SQLite-backed snapshot store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	store := &SQLiteStore{
		db:   db,
		path: path,
	}
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// Enable WAL mode for better concurrency
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.StorageFailed, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS mnemo_state (
            component TEXT PRIMARY KEY,
            data TEXT NOT NULL,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );
        `

		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.WithFields(
				errors.Wrap(err, errors.StorageFailed, "failed to initialize database"),
				errors.Fields{"path": s.path},
			)
			return
		}
	})
	return initErr
}

func (s *SQLiteStore) Load(component string) ([]byte, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM mnemo_state WHERE component = ?", component).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, notFound(component)
	}
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to load snapshot"),
			errors.Fields{"component": component},
		)
	}

	return []byte(data), nil
}

func (s *SQLiteStore) Save(component string, data []byte) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
    INSERT INTO mnemo_state (component, data, updated_at)
    VALUES (?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(component) DO UPDATE SET
        data = excluded.data,
        updated_at = CURRENT_TIMESTAMP
    `

	if _, err := s.db.Exec(query, component, string(data)); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to save snapshot"),
			errors.Fields{"component": component},
		)
	}

	return nil
}

func (s *SQLiteStore) Delete(component string) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM mnemo_state WHERE component = ?", component); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to delete snapshot"),
			errors.Fields{"component": component},
		)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to close database connection")
	}
	return nil
}
