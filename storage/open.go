package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendSQLite  = "sqlite"
)

// Open returns the database backend selected by name rooted at dir.
func Open(backend, dir string) (Database, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" || backend == BackendMemory {
		return NewMemDB(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch backend {
	case BackendLevelDB:
		return NewLevelDB(filepath.Join(dir, "state"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dir, "state.db"), nil)
	case BackendSQLite:
		return NewSQLiteDB(filepath.Join(dir, "state.sqlite"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
