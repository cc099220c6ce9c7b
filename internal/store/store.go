package store

import (
	"context"
	"github.com/denisschmidt/localstore/internal/types"
)

// Store is a durable, local container of file records addressable by id.
//
// Put either stores the whole record or nothing. Get and Open fail with
// types.ErrFileNotExists for unknown ids, while Delete of an unknown id succeeds.
// List returns a snapshot in insertion order without the record bytes.
type Store interface {
	Put(ctx context.Context, in types.FileRecordInput) (types.ID, error)
	Get(ctx context.Context, id types.ID) (types.FileRecord, error)
	Open(ctx context.Context, id types.ID) (types.UploadRecord, error)
	List(ctx context.Context) ([]types.Summary, error)
	Delete(ctx context.Context, id types.ID) error
	Close() error
}
