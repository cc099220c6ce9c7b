package file

import (
	"errors"
	"github.com/denisschmidt/localstore/internal/store/db/wrapper"
	"github.com/denisschmidt/localstore/internal/types"
	"io"
)

var errWriterClosed = errors.New("write to closed chunk writer")

type writer struct {
	ctx     wrapper.SqlDB
	ID      types.ID
	buf     []byte
	written int
	closed  bool
}

// NewWriter creates a new Writer for the given ID using the specified SqlDB instance.
// The data will be split into separate rows of `records_data`, with each row containing at most chunkLen bytes.
// Pass a *sql.Tx to make the whole record land in one transaction.
func NewWriter(ctx wrapper.SqlDB, id types.ID, chunkLen int) io.WriteCloser {
	return &writer{
		ctx: ctx,
		ID:  id,
		buf: make([]byte, chunkLen),
	}
}

// Write buffers data and flushes every full chunk as its own row.
// It returns the number of bytes accepted from data and stops at the first failed flush.
func (w *writer) Write(data []byte) (int, error) {
	if w.closed {
		return 0, errWriterClosed
	}

	bytesWritten := 0

	for bytesWritten < len(data) {
		bufferStart := w.written % len(w.buf)
		copySize := min(len(w.buf)-bufferStart, len(data)-bytesWritten)
		bufferEnd := bufferStart + copySize
		copy(w.buf[bufferStart:bufferEnd], data[bytesWritten:bytesWritten+copySize])

		if bufferEnd == len(w.buf) {
			if err := w.flush(len(w.buf)); err != nil {
				return bytesWritten, err
			}
		}

		w.written += copySize
		bytesWritten += copySize
	}

	return bytesWritten, nil
}

// Close flushes the trailing partial chunk, if any.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	unflushed := w.written % len(w.buf)
	if unflushed != 0 {
		return w.flush(unflushed)
	}
	return nil
}

// flush inserts the first n bytes of buf as the chunk that contains offset `written`.
//
// id: the record this data belongs to.
// chunk_index: position of the chunk within the record, starting at 0.
// chunk: at most len(buf) bytes; only the last chunk of a record may be shorter.
func (w *writer) flush(n int) error {
	idx := w.written / len(w.buf)
	_, err := w.ctx.Exec(`
	INSERT INTO
		records_data
	(
		id,
		chunk_index,
		chunk
	)
	VALUES(?,?,?)
 	`, w.ID, idx, w.buf[0:n])
	return err
}
