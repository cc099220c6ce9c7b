package file

import (
	"bytes"
	"context"
	"fmt"
	"github.com/denisschmidt/localstore/internal/store/db/wrapper"
	"github.com/denisschmidt/localstore/internal/types"
	"io"
)

type (
	// reader streams a record back out of `records_data` one chunk at a time.
	// offset is the position right after the last byte loaded into buf, so the
	// logical read position is offset - buf.Len().
	reader struct {
		ctx        context.Context
		db         wrapper.Querier
		ID         types.ID
		fileLength int64
		offset     int64
		chunkSize  int64
		buf        *bytes.Buffer
	}
)

// NewReader returns a ReadSeeker over a record of fileLength bytes stored in chunkSize rows.
// Chunks are fetched under ctx, so reads fail once ctx is cancelled.
func NewReader(ctx context.Context, db wrapper.Querier, id types.ID, fileLength, chunkSize int64) (io.ReadSeeker, error) {
	if chunkSize <= 0 && fileLength > 0 {
		return nil, fmt.Errorf("record %s has invalid chunk size %d", id, chunkSize)
	}

	return &reader{
		ctx:        ctx,
		db:         db,
		ID:         id,
		fileLength: fileLength,
		chunkSize:  chunkSize,
		buf:        bytes.NewBuffer([]byte{}),
	}, nil
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	read := 0
	for read < len(p) {
		if r.buf.Len() == 0 {
			if r.offset >= r.fileLength {
				if read == 0 {
					return 0, io.EOF
				}
				return read, nil
			}
			// Repopulate the buf with the next chunk and continue reading
			if err := r.populateBuffer(); err != nil {
				return read, err
			}
		}

		n, _ := r.buf.Read(p[read:])
		read += n
	}

	return read, nil
}

func (r *reader) Seek(offset int64, whence int) (int64, error) {
	current := r.offset - int64(r.buf.Len())

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = current + offset
	case io.SeekEnd:
		abs = r.fileLength + offset
	default:
		return current, fmt.Errorf("invalid whence value: %d", whence)
	}

	if abs < 0 {
		return current, fmt.Errorf("negative position: %d", abs)
	}

	// seeking to a new position invalidates the buffered chunk
	r.buf = bytes.NewBuffer([]byte{})
	r.offset = abs

	return abs, nil
}

func (r *reader) populateBuffer() error {
	if r.offset >= r.fileLength {
		return io.EOF
	}

	chunkIndex := r.offset / r.chunkSize

	var chunk []byte
	err := r.db.QueryRowContext(r.ctx, `
		SELECT chunk
		FROM records_data
		WHERE id=? AND chunk_index=?
	`, r.ID, chunkIndex).Scan(&chunk)
	if err != nil {
		return fmt.Errorf("reading chunk %d of %s: %w", chunkIndex, r.ID, err)
	}

	readStart := r.offset % r.chunkSize
	if readStart > int64(len(chunk)) {
		return fmt.Errorf("chunk %d of %s is truncated", chunkIndex, r.ID)
	}

	r.buf = bytes.NewBuffer(chunk[readStart:])
	r.offset += int64(len(chunk)) - readStart

	return nil
}
