package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/speps/go-hashids/v2"
	bolt "go.etcd.io/bbolt"
	"syscall"
	"time"
)

const (
	hashidSalt      = "localstore"
	hashidMinLength = 8
)

var (
	recordsBucket = []byte("records")
	dataBucket    = []byte("data")
	indexBucket   = []byte("index")
)

// BoltKV keeps records in a single bolt file.
//
//	records: big-endian sequence -> JSON summary (cursor order is insertion order)
//	data:    big-endian sequence -> raw bytes
//	index:   id -> big-endian sequence
type BoltKV struct {
	db       *bolt.DB
	h        *hashids.HashID
	maxBytes int64
}

var _ store.Store = (*BoltKV)(nil)

// Open opens or creates the bolt file at path. maxBytes caps the sum of stored
// record sizes; 0 means no cap.
//
// bolt locks the file for a single handle. Opening a path that another handle
// still holds waits one second and then fails with ErrStorageUnavailable; close
// the first handle before reopening.
func Open(path string, maxBytes int64) (*BoltKV, error) {
	hd := hashids.NewData()
	hd.Salt = hashidSalt
	hd.MinLength = hashidMinLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, types.ErrStorageUnavailable{Path: path, Err: err}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, types.ErrStorageUnavailable{Path: path, Err: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, dataBucket, indexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, types.ErrStorageUnavailable{Path: path, Err: err}
	}

	return &BoltKV{
		db:       db,
		h:        h,
		maxBytes: maxBytes,
	}, nil
}

func (b *BoltKV) Put(ctx context.Context, in types.FileRecordInput) (types.ID, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	var id types.ID
	err := b.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(recordsBucket)
		index := tx.Bucket(indexBucket)

		if in.ID != "" && index.Get([]byte(in.ID)) != nil {
			return types.ErrValidation{Field: "id", Reason: fmt.Sprintf("%s already exists", in.ID)}
		}

		if b.maxBytes > 0 {
			used, err := usedBytes(records)
			if err != nil {
				return err
			}
			if used+in.Size > b.maxBytes {
				return types.ErrStorageFull{Requested: in.Size, Available: b.maxBytes - used}
			}
		}

		seq, err := records.NextSequence()
		if err != nil {
			return err
		}

		id = in.ID
		if id == "" {
			encoded, err := b.h.EncodeInt64([]int64{int64(seq)})
			if err != nil {
				return err
			}
			id = types.ID(encoded)
			// a caller may already have claimed the encoded form as its own id
			if index.Get([]byte(id)) != nil {
				return types.ErrValidation{Field: "id", Reason: fmt.Sprintf("generated id %s is taken", id)}
			}
		}

		summary, err := json.Marshal(in.Summary(id, time.Now()))
		if err != nil {
			return err
		}

		key := seqKey(seq)
		if err := records.Put(key, summary); err != nil {
			return err
		}
		if err := tx.Bucket(dataBucket).Put(key, in.Data); err != nil {
			return err
		}
		return index.Put([]byte(id), key)
	})
	if err != nil {
		return "", writeError(err, in.Size)
	}

	return id, nil
}

func (b *BoltKV) Get(ctx context.Context, id types.ID) (types.FileRecord, error) {
	var record types.FileRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		key, summary, err := lookup(tx, id)
		if err != nil {
			return err
		}

		// bolt values are only valid for the life of the transaction
		data := tx.Bucket(dataBucket).Get(key)
		record = types.FileRecord{
			Summary: summary,
			Data:    append([]byte{}, data...),
		}
		return nil
	})
	if err != nil {
		return types.FileRecord{}, err
	}

	if int64(len(record.Data)) != record.Size {
		return types.FileRecord{}, fmt.Errorf("record %s: read %d bytes, expected %d", id, len(record.Data), record.Size)
	}

	return record, nil
}

func (b *BoltKV) Open(ctx context.Context, id types.ID) (types.UploadRecord, error) {
	record, err := b.Get(ctx, id)
	if err != nil {
		return types.UploadRecord{}, err
	}

	return types.UploadRecord{
		Summary: record.Summary,
		Reader:  bytes.NewReader(record.Data),
	}, nil
}

func (b *BoltKV) List(ctx context.Context) ([]types.Summary, error) {
	summaries := []types.Summary{}
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var s types.Summary
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decode record %x: %w", k, err)
			}
			summaries = append(summaries, s)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// Delete removes the record if present. Unknown ids are not an error.
func (b *BoltKV) Delete(ctx context.Context, id types.ID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		key := index.Get([]byte(id))
		if key == nil {
			return nil
		}
		key = append([]byte{}, key...)

		if err := tx.Bucket(recordsBucket).Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(dataBucket).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
}

func (b *BoltKV) Close() error {
	return b.db.Close()
}

func lookup(tx *bolt.Tx, id types.ID) ([]byte, types.Summary, error) {
	key := tx.Bucket(indexBucket).Get([]byte(id))
	if key == nil {
		return nil, types.Summary{}, types.ErrFileNotExists{ID: id}
	}

	v := tx.Bucket(recordsBucket).Get(key)
	if v == nil {
		return nil, types.Summary{}, fmt.Errorf("index points at missing record %s", id)
	}

	var s types.Summary
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, types.Summary{}, fmt.Errorf("decode record %s: %w", id, err)
	}

	return key, s, nil
}

func usedBytes(records *bolt.Bucket) (int64, error) {
	var used int64
	err := records.ForEach(func(k, v []byte) error {
		var s types.Summary
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		used += s.Size
		return nil
	})
	return used, err
}

func writeError(err error, requested int64) error {
	var (
		ve   types.ErrValidation
		full types.ErrStorageFull
	)
	if errors.As(err, &ve) || errors.As(err, &full) {
		return err
	}
	if errors.Is(err, syscall.ENOSPC) {
		return types.ErrStorageFull{Requested: requested, Available: -1, Err: err}
	}
	return fmt.Errorf("write record: %w", err)
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
