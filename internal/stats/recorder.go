package stats

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// ResponseWriter is the http.ResponseWriter handed to wrapped handlers.
// It remembers the status and the body size so EndRecording can count them.
type ResponseWriter interface {
	http.ResponseWriter
	http.Flusher
	http.Pusher
	http.Hijacker
	Status() int
	Written() bool
	Size() int
	// Before registers a hook that runs right before the header is written
	Before(func(ResponseWriter))
}

type beforeFunc func(ResponseWriter)

type responseRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	beforeFuncs []beforeFunc
	written     bool
	hijacked    bool
}

// NewResponseRecorder wraps w. statusCode is reported until the handler writes a header.
func NewResponseRecorder(w http.ResponseWriter, statusCode int) ResponseWriter {
	return &responseRecorder{ResponseWriter: w, status: statusCode}
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.written {
		return
	}
	r.status = code
	for i := len(r.beforeFuncs) - 1; i >= 0; i-- {
		r.beforeFuncs[i](r)
	}
	r.written = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}

	size, err := r.ResponseWriter.Write(b)
	r.size += size
	return size, err
}

func (r *responseRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Status is 0 once the connection was hijacked, so hijacked requests are not counted
func (r *responseRecorder) Status() int {
	if r.hijacked {
		return 0
	}
	return r.status
}

func (r *responseRecorder) Written() bool {
	return r.written
}

func (r *responseRecorder) Size() int {
	return r.size
}

func (r *responseRecorder) Before(before func(ResponseWriter)) {
	r.beforeFuncs = append(r.beforeFuncs, before)
}

func (r *responseRecorder) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := r.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return errors.New("the ResponseWriter doesn't support the Pusher interface")
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if !r.written {
		r.hijacked = true
	}
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("the ResponseWriter doesn't support the Hijacker interface")
	}
	return hijacker.Hijack()
}
