package stats_test

import (
	"encoding/json"
	"github.com/denisschmidt/localstore/internal/stats"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

var testHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(200)
	w.Write([]byte("test"))
})

func TestSingleRequest(t *testing.T) {
	s := stats.NewStatistic()
	defer s.Close()

	rec := httptest.NewRecorder()

	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)

	s.WrapHandler(testHandler).ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	data := s.GatherData()
	require.Equal(t, 1, data.TotalStatusCodeCount["200"])
	require.Equal(t, int64(len("test")), data.TotalResponseSize)

}

func TestGetStats(t *testing.T) {
	s := stats.NewStatistic()
	defer s.Close()

	var fn = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.GatherData()
		// encode into JSON
		b, _ := json.Marshal(res)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write(b)
	})

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)

	s.WrapHandler(testHandler).ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	s.WrapHandler(fn).ServeHTTP(rec, req)

	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	data := make(map[string]interface{})
	// decode JSON
	err = json.Unmarshal(rec.Body.Bytes(), &data)
	require.NoError(t, err)

	require.Equal(t, float64(1), data["total_count"].(float64))
}

func TestRace(t *testing.T) {
	stat := stats.NewStatistic()
	defer stat.Close()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	})

	wrappedHandler := stat.WrapHandler(handler)

	ch1 := make(chan bool)
	ch2 := make(chan bool)

	go func() {
		req, err := http.NewRequest("GET", "/", nil)
		if err != nil {
			t.Fatal(err)
		}
		rr := httptest.NewRecorder()

		for {
			select {
			case <-ch1:
				return
			default:
				wrappedHandler.ServeHTTP(rr, req)
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ch2:
				return
			default:
				data := stat.GatherData()
				_ = data.TotalStatusCodeCount["200"]
			}
		}
	}()

	time.Sleep(time.Second)

	ch1 <- true
	ch2 <- true
}

func TestIgnoreHijackedConnection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Hijacker).Hijack()
	})

	stat := stats.NewStatistic()
	defer stat.Close()

	rec := httptest.NewRecorder()

	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)

	wrappedHandler := stat.WrapHandler(handler)
	wrappedHandler.ServeHTTP(rec, req)

	require.Empty(t, stat.GatherData().TotalStatusCodeCount)
}

func TestBeforeHookRunsOnce(t *testing.T) {
	stat := stats.NewStatistic()
	defer stat.Close()

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(stats.ResponseWriter).Before(func(rw stats.ResponseWriter) {
			calls++
			rw.Header().Set("X-Status", strconv.Itoa(rw.Status()))
		})
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tea"))
	})

	rec := httptest.NewRecorder()
	stat.WrapHandler(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "418", rec.Header().Get("X-Status"))
	require.Equal(t, 1, stat.GatherData().TotalStatusCodeCount["418"])
}

func TestRecordMetric(t *testing.T) {
	stat := stats.NewStatistic()
	defer stat.Close()

	stat.RecordDuration("store.put", 2*time.Second)
	stat.RecordDuration("store.put", 4*time.Second)
	stat.RecordMetric("store.get", time.Now(), []stats.MetricLabel{
		{Name: "result", Value: "error"},
		{Name: "backend", Value: "bolt"},
	})

	data := stat.GatherData()
	require.Equal(t, 2, data.TotalMetricCounts["store.put"])
	require.Equal(t, float64(3), data.AverageMetricTimes["store.put"])
	require.Equal(t, 1, data.TotalMetricCounts["store.get{backend=bolt,result=error}"])
}
