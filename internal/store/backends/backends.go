package backends

import (
	"fmt"
	"github.com/denisschmidt/localstore/config"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/store/db"
	"github.com/denisschmidt/localstore/internal/store/kv"
	"github.com/denisschmidt/localstore/internal/types"
	"os"
	"path/filepath"
)

// Open opens the record store selected by cfg.Backend, creating its parent
// directory when needed. Every failure is an ErrStorageUnavailable.
func Open(cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		d, err := db.Open(cfg.DBPath, db.Options{
			Driver:                cfg.DBDriver,
			ChunkSize:             cfg.DBChunkSize,
			MaxStoreBytes:         cfg.MaxStoreBytes,
			OptimizeForLitestream: cfg.OptimizeForLitestream,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.BackendBolt:
		if err := ensureDir(cfg.BoltPath); err != nil {
			return nil, err
		}
		b, err := kv.Open(cfg.BoltPath, cfg.MaxStoreBytes)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, types.ErrStorageUnavailable{Err: fmt.Errorf("unknown backend %q", cfg.Backend)}
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return types.ErrStorageUnavailable{Path: path, Err: fmt.Errorf("create data directory %q: %w", dir, err)}
	}
	return nil
}
