// Package storetest holds the behaviour every store.Store backend has to share.
// Backend packages call Run from their own tests.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
)

// Factory opens a store. Calling it twice with the same key must open the same
// persisted data, while distinct keys must give independent stores.
type Factory func(t *testing.T, key string) store.Store

// Run executes the conformance suite against the stores produced by open.
func Run(t *testing.T, open Factory) {
	for scenario, fn := range map[string]func(t *testing.T, open Factory){
		"put then get":                testPutGet,
		"empty data":                  testEmptyData,
		"same name twice":             testSameNameTwice,
		"caller supplied id":          testCallerID,
		"validation":                  testValidation,
		"get unknown id":              testGetUnknown,
		"delete":                      testDelete,
		"delete unknown id":           testDeleteUnknown,
		"list after puts and deletes": testListCounts,
		"list is a snapshot":          testListSnapshot,
		"reopen keeps records":        testReopen,
		"open streams and seeks":      testOpenStream,
		"ids are compared exactly":    testStrictIDs,
		"failed put leaves no trace":  testFailedPutLeavesNoTrace,
		"large record spans chunks":   testLargeRecord,
		"concurrent puts and gets":    testConcurrentPuts,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, open)
		})
	}
}

func testPutGet(t *testing.T, open Factory) {
	s := open(t, "put-get")
	ctx := context.Background()

	id, err := s.Put(ctx, types.NewFileRecordInput("a.txt", "text/plain", []byte{1, 2, 3}))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)

	require.Equal(t, id, record.ID)
	require.Equal(t, types.Filename("a.txt"), record.Filename)
	require.Equal(t, types.ContentType("text/plain"), record.ContentType)
	require.Equal(t, int64(3), record.Size)
	require.Equal(t, []byte{1, 2, 3}, record.Data)
	require.Equal(t, record.Size, int64(len(record.Data)))
	require.False(t, record.CreateAt.IsZero())
}

func testEmptyData(t *testing.T, open Factory) {
	s := open(t, "empty")
	ctx := context.Background()

	id, err := s.Put(ctx, types.NewFileRecordInput("empty.bin", "", []byte{}))
	require.NoError(t, err)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), record.Size)
	require.Len(t, record.Data, 0)
	require.Equal(t, types.ContentType(""), record.ContentType)
}

func testSameNameTwice(t *testing.T, open Factory) {
	s := open(t, "same-name")
	ctx := context.Background()

	first, err := s.Put(ctx, types.NewFileRecordInput("same.txt", "text/plain", []byte("first")))
	require.NoError(t, err)
	second, err := s.Put(ctx, types.NewFileRecordInput("same.txt", "text/plain", []byte("second")))
	require.NoError(t, err)

	require.NotEqual(t, first, second)

	r1, err := s.Get(ctx, first)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), r1.Data)

	r2, err := s.Get(ctx, second)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), r2.Data)
}

func testCallerID(t *testing.T, open Factory) {
	s := open(t, "caller-id")
	ctx := context.Background()

	in := types.NewFileRecordInput("mine.txt", "text/plain", []byte("mine"))
	in.ID = types.ID("my-own-id")

	id, err := s.Put(ctx, in)
	require.NoError(t, err)
	require.Equal(t, types.ID("my-own-id"), id)

	_, err = s.Put(ctx, in)
	var ve types.ErrValidation
	require.True(t, errors.As(err, &ve), "got %v", err)
	require.Equal(t, "id", ve.Field)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("mine"), record.Data)
}

func testValidation(t *testing.T, open Factory) {
	s := open(t, "validation")
	ctx := context.Background()

	for _, row := range []struct {
		description string
		input       types.FileRecordInput
	}{
		{
			description: "empty name",
			input:       types.NewFileRecordInput("", "text/plain", []byte("x")),
		},
		{
			description: "nil data",
			input:       types.FileRecordInput{Filename: "nil.txt"},
		},
		{
			description: "size mismatch",
			input:       types.FileRecordInput{Filename: "size.txt", Size: 1, Data: []byte("xyz")},
		},
	} {
		t.Run(row.description, func(t *testing.T) {
			_, err := s.Put(ctx, row.input)
			var ve types.ErrValidation
			require.True(t, errors.As(err, &ve), "got %v", err)
		})
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testGetUnknown(t *testing.T, open Factory) {
	s := open(t, "unknown")
	ctx := context.Background()

	_, err := s.Get(ctx, types.ID("does-not-exist"))
	requireNotFound(t, err, "does-not-exist")

	_, err = s.Open(ctx, types.ID("does-not-exist"))
	requireNotFound(t, err, "does-not-exist")
}

func testDelete(t *testing.T, open Factory) {
	s := open(t, "delete")
	ctx := context.Background()

	id, err := s.Put(ctx, types.NewFileRecordInput("gone.txt", "text/plain", []byte("bye")))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	requireNotFound(t, err, string(id))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testDeleteUnknown(t *testing.T, open Factory) {
	s := open(t, "delete-unknown")
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, types.ID("never-stored")))

	id, err := s.Put(ctx, types.NewFileRecordInput("twice.txt", "", []byte("x")))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id))
}

func testListCounts(t *testing.T, open Factory) {
	s := open(t, "list-counts")
	ctx := context.Background()

	names := []string{"0.txt", "1.txt", "2.txt", "3.txt", "4.txt"}
	ids := make([]types.ID, 0, len(names))
	for _, name := range names {
		id, err := s.Put(ctx, types.NewFileRecordInput(name, "text/plain", []byte(name)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, s.Delete(ctx, ids[1]))
	require.NoError(t, s.Delete(ctx, ids[3]))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(names)-2)

	// insertion order survives deletes
	require.Equal(t, []types.ID{ids[0], ids[2], ids[4]}, []types.ID{list[0].ID, list[1].ID, list[2].ID})

	for _, summary := range list {
		record, err := s.Get(ctx, summary.ID)
		require.NoError(t, err)
		require.Equal(t, summary.Filename, record.Filename)
		require.Equal(t, summary.Size, record.Size)
		require.Equal(t, []byte(summary.Filename), record.Data)
	}
}

func testListSnapshot(t *testing.T, open Factory) {
	s := open(t, "list-snapshot")
	ctx := context.Background()

	id, err := s.Put(ctx, types.NewFileRecordInput("a.txt", "", []byte("a")))
	require.NoError(t, err)

	before, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)

	_, err = s.Put(ctx, types.NewFileRecordInput("b.txt", "", []byte("b")))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	require.Len(t, before, 1)
	require.Equal(t, id, before[0].ID)
	require.Equal(t, types.Filename("a.txt"), before[0].Filename)
}

func testReopen(t *testing.T, open Factory) {
	ctx := context.Background()

	first := open(t, "reopen")
	id, err := first.Put(ctx, types.NewFileRecordInput("durable.txt", "text/plain", []byte("still here")))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := open(t, "reopen")
	record, err := second.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("still here"), record.Data)

	// the second handle keeps allocating fresh ids
	other, err := second.Put(ctx, types.NewFileRecordInput("durable.txt", "text/plain", []byte("new")))
	require.NoError(t, err)
	require.NotEqual(t, id, other)

	list, err := second.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func testOpenStream(t *testing.T, open Factory) {
	s := open(t, "open-stream")
	ctx := context.Background()

	data := []byte("test test test@")
	id, err := s.Put(ctx, types.NewFileRecordInput("test.txt", "text/plain", data))
	require.NoError(t, err)

	record, err := s.Open(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), record.Size)

	pos, err := record.Reader.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)-1), pos)

	content, err := io.ReadAll(record.Reader)
	require.NoError(t, err)
	require.Equal(t, "@", string(content))

	_, err = record.Reader.Seek(0, io.SeekStart)
	require.NoError(t, err)
	content, err = io.ReadAll(record.Reader)
	require.NoError(t, err)
	require.Equal(t, data, content)
}

func testStrictIDs(t *testing.T, open Factory) {
	s := open(t, "strict-ids")
	ctx := context.Background()

	in := types.NewFileRecordInput("one.txt", "", []byte("1"))
	in.ID = types.ID("1")
	_, err := s.Put(ctx, in)
	require.NoError(t, err)

	for _, lookalike := range []types.ID{"01", " 1", "1.0"} {
		_, err := s.Get(ctx, lookalike)
		requireNotFound(t, err, string(lookalike))
	}
}

func testFailedPutLeavesNoTrace(t *testing.T, open Factory) {
	s := open(t, "no-trace")
	ctx := context.Background()

	in := types.FileRecordInput{ID: types.ID("broken"), Filename: "broken.txt", Size: 99, Data: []byte("short")}
	_, err := s.Put(ctx, in)
	require.Error(t, err)

	_, err = s.Get(ctx, types.ID("broken"))
	requireNotFound(t, err, "broken")
}

func testLargeRecord(t *testing.T, open Factory) {
	s := open(t, "large")
	ctx := context.Background()

	data := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	id, err := s.Put(ctx, types.NewFileRecordInput("large.bin", "application/octet-stream", data))
	require.NoError(t, err)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), record.Size)
	require.True(t, bytes.Equal(data, record.Data))
}

// testConcurrentPuts stores records from many goroutines at once and reads each
// one back while the others are still writing.
func testConcurrentPuts(t *testing.T, open Factory) {
	s := open(t, "concurrent")
	ctx := context.Background()

	const writers = 50

	var (
		wg   sync.WaitGroup
		errs = make(chan error, writers)
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			name := fmt.Sprintf("%02d.txt", i)
			data := bytes.Repeat([]byte(name), i+1)
			id, err := s.Put(ctx, types.NewFileRecordInput(name, "text/plain", data))
			if err != nil {
				errs <- fmt.Errorf("put %s: %w", name, err)
				return
			}

			record, err := s.Get(ctx, id)
			if err != nil {
				errs <- fmt.Errorf("get %s: %w", name, err)
				return
			}
			if record.Filename != types.Filename(name) || !bytes.Equal(record.Data, data) || record.Size != int64(len(data)) {
				errs <- fmt.Errorf("record %s came back as %s with %d bytes", name, record.Filename, len(record.Data))
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, writers)

	seen := map[types.ID]bool{}
	for _, summary := range list {
		require.False(t, seen[summary.ID], "duplicate id %s", summary.ID)
		seen[summary.ID] = true
	}
}

func requireNotFound(t *testing.T, err error, id string) {
	t.Helper()
	var nf types.ErrFileNotExists
	require.True(t, errors.As(err, &nf), "expected not found, got %v", err)
	require.Equal(t, types.ID(id), nf.ID)
}
