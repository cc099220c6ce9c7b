package main

import (
	"bytes"
	"context"
	"fmt"
	"github.com/denisschmidt/localstore/internal/stats"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/types"
	log "github.com/sirupsen/logrus"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"
)

type result struct {
	File  string
	Size  int64
	Write time.Duration
	Read  time.Duration
}

type bench struct {
	store store.Store
	keep  bool
}

// run writes every file into the store, reads it back and checks the bytes
// survived the round trip. A table row is printed per file.
func (b *bench) run(files []string, out io.Writer) ([]result, error) {
	ctx := context.Background()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE (MB)\tWRITE (ms)\tREAD (ms)")

	results := make([]result, 0, len(files))
	for _, file := range files {
		res, err := b.one(ctx, file)
		if err != nil {
			w.Flush()
			return results, err
		}
		results = append(results, res)
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\n", res.File, megabytes(res.Size), millis(res.Write), millis(res.Read))
	}

	return results, w.Flush()
}

func (b *bench) one(ctx context.Context, file string) (result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return result{}, err
	}

	name := filepath.Base(file)
	in := types.NewFileRecordInput(name, contentType(name, data), data)

	start := time.Now()
	id, err := b.store.Put(ctx, in)
	if err != nil {
		return result{}, fmt.Errorf("put %s: %w", file, err)
	}
	writeTime := time.Since(start)

	start = time.Now()
	record, err := b.store.Get(ctx, id)
	if err != nil {
		return result{}, fmt.Errorf("get %s: %w", file, err)
	}
	readTime := time.Since(start)

	if !bytes.Equal(record.Data, data) {
		return result{}, fmt.Errorf("%s: stored bytes differ from the file", file)
	}

	if !b.keep {
		if err := b.store.Delete(ctx, id); err != nil {
			log.WithError(err).WithField("id", id).Warn("failed to remove benchmarked record")
		}
	}

	return result{
		File:  name,
		Size:  record.Size,
		Write: writeTime,
		Read:  readTime,
	}, nil
}

func printAverages(out io.Writer, data *stats.StatisticData) {
	metrics := make([]string, 0, len(data.AverageMetricTimes))
	for metric := range data.AverageMetricTimes {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nMETRIC\tCALLS\tAVG (ms)")
	for _, metric := range metrics {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", metric, data.TotalMetricCounts[metric], data.AverageMetricTimes[metric]*1000)
	}
	w.Flush()
}

func contentType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func megabytes(n int64) float64 {
	return float64(n) / 1024 / 1024
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
