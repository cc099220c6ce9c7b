package main

import (
	"bytes"
	"context"
	"github.com/denisschmidt/localstore/internal/stats"
	"github.com/denisschmidt/localstore/internal/store/kv"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestBenchRun(t *testing.T) {
	dir := t.TempDir()
	st, err := kv.Open(filepath.Join(dir, "bench.bolt"), 0)
	require.NoError(t, err)
	defer st.Close()

	stat := stats.NewStatistic()
	defer stat.Close()

	files := []string{
		writeFile(t, dir, "small.pdf", []byte("%PDF-1.4 tiny")),
		writeFile(t, dir, "big.bin", bytes.Repeat([]byte{7}, 1<<20)),
	}

	for _, row := range []struct {
		description string
		keep        bool
		stored      int
	}{
		{description: "records removed", stored: 0},
		{description: "records kept", keep: true, stored: 2},
	} {
		t.Run(row.description, func(t *testing.T) {
			b := &bench{store: stats.InstrumentStore(st, stat), keep: row.keep}

			var out bytes.Buffer
			results, err := b.run(files, &out)
			require.NoError(t, err)
			require.Len(t, results, 2)
			require.Equal(t, int64(13), results[0].Size)
			require.Equal(t, int64(1<<20), results[1].Size)
			require.Contains(t, out.String(), "small.pdf")
			require.Contains(t, out.String(), "1.00")

			list, err := st.List(context.Background())
			require.NoError(t, err)
			require.Len(t, list, row.stored)
		})
	}

	var out bytes.Buffer
	printAverages(&out, stat.GatherData())
	require.True(t, strings.Contains(out.String(), "store.put"))
	require.True(t, strings.Contains(out.String(), "store.get"))
}

func TestBenchMissingFile(t *testing.T) {
	st, err := kv.Open(filepath.Join(t.TempDir(), "bench.bolt"), 0)
	require.NoError(t, err)
	defer st.Close()

	b := &bench{store: st}
	_, err = b.run([]string{"does/not/exist"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestContentType(t *testing.T) {
	require.Equal(t, "application/pdf", contentType("a.pdf", nil))
	require.Equal(t, "text/plain; charset=utf-8", contentType("noext", []byte("hello")))
}
