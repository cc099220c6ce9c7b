package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/denisschmidt/localstore/config"
	"github.com/denisschmidt/localstore/internal/auth/fake_auth"
	"github.com/denisschmidt/localstore/internal/server"
	"github.com/denisschmidt/localstore/internal/store/db"
	"github.com/denisschmidt/localstore/internal/store/db/fake_db"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/stretchr/testify/require"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, database *db.DB) *server.Server {
	t.Helper()
	defaultConfig := config.DefaultConfig()
	s, err := server.New(defaultConfig, database, fake_auth.FakeAuth{})
	require.NoError(t, err)
	return s
}

func TestInsertRecord(t *testing.T) {
	for _, row := range []struct {
		description string
		filename    string
		contents    string
		status      int
	}{
		{
			description: "valid file",
			filename:    "test1.png",
			contents:    "file content",
			status:      http.StatusOK,
		},
		{
			description: "file spanning several chunks",
			filename:    "test2.txt",
			contents:    strings.Repeat("0123456789", 20),
			status:      http.StatusOK,
		},
		{
			description: "empty file content",
			filename:    "test.jpg",
			contents:    "",
			status:      http.StatusOK,
		},
		{
			description: "filename error",
			filename:    ".",
			contents:    "file content",
			status:      http.StatusBadRequest,
		},
	} {
		t.Run(row.description, func(t *testing.T) {
			database := fake_db.New(5)
			defer database.Close()
			s := newTestServer(t, database)

			formData, contentType := createMultipartFormBody(row.filename, bytes.NewBuffer([]byte(row.contents)))

			req, err := http.NewRequest("POST", "/api/file", formData)
			require.NoError(t, err)
			req.Header.Add("Content-Type", contentType)

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			require.Equal(t, row.status, rec.Code)

			if rec.Code != http.StatusOK {
				list, err := database.List(context.Background())
				require.NoError(t, err)
				require.Empty(t, list)
				return
			}

			var response types.RecordPostResponse
			err = json.Unmarshal(rec.Body.Bytes(), &response)
			require.NoError(t, err)

			record, err := database.Get(context.Background(), types.ID(response.ID))
			require.NoError(t, err)
			require.Equal(t, []byte(row.contents), record.Data)
			require.Equal(t, types.Filename(row.filename), record.Filename)
			require.Equal(t, types.ContentType("application/octet-stream"), record.ContentType)
		})
	}
}

func TestUploadIsRejectedWhenFull(t *testing.T) {
	database := fake_db.NewWithQuota(5, 4)
	defer database.Close()
	s := newTestServer(t, database)

	formData, contentType := createMultipartFormBody("big.bin", strings.NewReader("too big"))
	req, err := http.NewRequest("POST", "/api/file", formData)
	require.NoError(t, err)
	req.Header.Add("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInsufficientStorage, rec.Code)
}

func TestGetRecord(t *testing.T) {
	database := fake_db.New(5)
	defer database.Close()
	s := newTestServer(t, database)

	id, err := database.Put(context.Background(), types.NewFileRecordInput("note.txt", "text/plain", []byte("file data")))
	require.NoError(t, err)

	for _, row := range []struct {
		description string
		path        string
		status      int
		body        string
		contentType string
	}{
		{
			description: "metadata",
			path:        "/api/file/" + string(id),
			status:      http.StatusOK,
			contentType: "application/json; charset=utf-8",
		},
		{
			description: "raw bytes",
			path:        "/api/file/" + string(id) + "/raw",
			status:      http.StatusOK,
			body:        "file data",
			contentType: "text/plain",
		},
		{
			description: "unknown id",
			path:        "/api/file/nope",
			status:      http.StatusNotFound,
		},
		{
			description: "unknown raw id",
			path:        "/api/file/nope/raw",
			status:      http.StatusNotFound,
		},
	} {
		t.Run(row.description, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req, err := http.NewRequest("GET", row.path, nil)
			require.NoError(t, err)
			s.ServeHTTP(rec, req)

			require.Equal(t, row.status, rec.Code)
			if row.contentType != "" {
				require.Equal(t, row.contentType, rec.Header().Get("Content-Type"))
			}
			if row.body != "" {
				require.Equal(t, row.body, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/api/file/"+string(id), nil)
	require.NoError(t, err)
	s.ServeHTTP(rec, req)

	var summary types.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, id, summary.ID)
	require.Equal(t, types.Filename("note.txt"), summary.Filename)
	require.Equal(t, int64(9), summary.Size)
}

func TestRawRange(t *testing.T) {
	database := fake_db.New(3)
	defer database.Close()
	s := newTestServer(t, database)

	id, err := database.Put(context.Background(), types.NewFileRecordInput("digits.txt", "text/plain", []byte("0123456789")))
	require.NoError(t, err)

	req, err := http.NewRequest("GET", "/api/file/"+string(id)+"/raw", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=4-7")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "4567", rec.Body.String())
}

func TestRawUpgradesToHttps(t *testing.T) {
	database := fake_db.New(5)
	defer database.Close()
	s := newTestServer(t, database)

	req, err := http.NewRequest("GET", "http://files.local/api/file/any/raw", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-Proto", "http")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://files.local/api/file/any/raw", rec.Header().Get("Location"))
}

func TestListRecords(t *testing.T) {
	database := fake_db.New(5)
	defer database.Close()
	s := newTestServer(t, database)

	var ids []types.ID
	for i := 0; i < 3; i++ {
		id, err := database.Put(context.Background(), types.NewFileRecordInput(fmt.Sprintf("%d.txt", i), "text/plain", []byte("x")))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/api/files", nil)
	require.NoError(t, err)
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []types.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 3)
	for i, summary := range summaries {
		require.Equal(t, ids[i], summary.ID)
	}
}

func TestDeleteRecord(t *testing.T) {
	database := fake_db.New(5)
	defer database.Close()
	s := newTestServer(t, database)

	id, err := database.Put(context.Background(), types.NewFileRecordInput("test_init_name.png", "image/png", []byte("file data")))
	require.NoError(t, err)

	record, err := database.Open(context.Background(), id)
	require.NoError(t, err)
	got, err := io.ReadAll(record.Reader)
	require.NoError(t, err)
	require.Equal(t, []byte("file data"), got)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req, err := http.NewRequest("DELETE", "/api/file/"+string(id), nil)
		require.NoError(t, err)
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/api/file/"+string(id), nil)
	require.NoError(t, err)
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreMetrics(t *testing.T) {
	database := fake_db.New(5)
	defer database.Close()

	cfg := config.DefaultConfig()
	cfg.Options.EnableStats = true
	s, err := server.New(cfg, database, fake_auth.FakeAuth{})
	require.NoError(t, err)
	defer s.Statistic().Close()

	formData, contentType := createMultipartFormBody("m.txt", strings.NewReader("metrics"))
	req, err := http.NewRequest("POST", "/api/file", formData)
	require.NoError(t, err)
	req.Header.Add("Content-Type", contentType)
	s.ServeHTTP(httptest.NewRecorder(), req)

	req, err = http.NewRequest("GET", "/api/file/missing", nil)
	require.NoError(t, err)
	s.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	req, err = http.NewRequest("GET", "/sys/stats", nil)
	require.NoError(t, err)
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		TotalMetricCounts map[string]int `json:"total_metrics_counts"`
		TotalCount        int            `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	require.Equal(t, 1, data.TotalMetricCounts["store.put{backend=sqlite}"])
	require.Equal(t, 1, data.TotalMetricCounts["store.open{backend=sqlite,result=error}"])
	require.Equal(t, 2, data.TotalCount)
}

func createMultipartFormBody(filename string, r io.Reader) (io.Reader, string) {
	var b bytes.Buffer
	bw := bufio.NewWriter(&b)
	mw := multipart.NewWriter(bw)

	f, err := mw.CreateFormFile("file", filename)
	if err != nil {
		panic(err)
	}
	io.Copy(f, r)

	mw.Close()
	bw.Flush()

	return bufio.NewReader(&b), mw.FormDataContentType()
}
