package stats

import (
	"context"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/types"
	"time"
)

const (
	MetricPut    = "store.put"
	MetricGet    = "store.get"
	MetricOpen   = "store.open"
	MetricList   = "store.list"
	MetricDelete = "store.delete"
)

type instrumentedStore struct {
	store.Store
	stat   *Statistic
	labels []MetricLabel
}

// InstrumentStore times every call made through the returned store.
// Failed calls are recorded under the metric name with an "error" label.
func InstrumentStore(s store.Store, stat *Statistic, labels ...MetricLabel) store.Store {
	return &instrumentedStore{
		Store:  s,
		stat:   stat,
		labels: labels,
	}
}

func (s *instrumentedStore) record(metric string, start time.Time, err error) {
	labels := s.labels
	if err != nil {
		labels = append(append([]MetricLabel{}, labels...), MetricLabel{Name: "result", Value: "error"})
	}
	s.stat.RecordMetric(metric, start, labels)
}

func (s *instrumentedStore) Put(ctx context.Context, in types.FileRecordInput) (types.ID, error) {
	start := time.Now()
	id, err := s.Store.Put(ctx, in)
	s.record(MetricPut, start, err)
	return id, err
}

func (s *instrumentedStore) Get(ctx context.Context, id types.ID) (types.FileRecord, error) {
	start := time.Now()
	record, err := s.Store.Get(ctx, id)
	s.record(MetricGet, start, err)
	return record, err
}

func (s *instrumentedStore) Open(ctx context.Context, id types.ID) (types.UploadRecord, error) {
	start := time.Now()
	record, err := s.Store.Open(ctx, id)
	s.record(MetricOpen, start, err)
	return record, err
}

func (s *instrumentedStore) List(ctx context.Context) ([]types.Summary, error) {
	start := time.Now()
	summaries, err := s.Store.List(ctx)
	s.record(MetricList, start, err)
	return summaries, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id types.ID) error {
	start := time.Now()
	err := s.Store.Delete(ctx, id)
	s.record(MetricDelete, start, err)
	return err
}
