// Package persist provides snapshot storage for the memory core. Each
// component saves and loads one opaque unit keyed by its name, so a corrupt
// or missing unit for one component never blocks the others from starting.
package persist

import (
	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
)

// Store persists one opaque snapshot per component.
type Store interface {
	// Load returns the snapshot for the named component, or a
	// ResourceNotFound error when none has been saved yet.
	Load(component string) ([]byte, error)

	// Save replaces the snapshot for the named component.
	Save(component string, data []byte) error

	// Delete removes the snapshot for the named component. Deleting an
	// absent snapshot is not an error.
	Delete(component string) error

	// Close releases any resources held by the backend.
	Close() error
}

// New builds a Store for the configured backend.
func New(cfg config.PersistenceConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Dir), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "unknown persistence backend"),
			errors.Fields{"backend": cfg.Backend},
		)
	}
}

func notFound(component string) error {
	return errors.WithFields(
		errors.New(errors.ResourceNotFound, "no snapshot for component"),
		errors.Fields{"component": component},
	)
}
