package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthzReflectsReadiness(t *testing.T) {
	ready := false
	s := New("127.0.0.1:0", func() bool { return ready })

	rec := newRecorder()
	req, err := http.NewRequest(http.MethodGet, "/healthz", nil)
	require.NoError(t, err)
	s.handleHealthz(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.code)

	ready = true
	rec = newRecorder()
	s.handleHealthz(rec, req)
	require.Equal(t, http.StatusOK, rec.code)
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	s := New("127.0.0.1:0", func() bool { return true })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
}

type recorder struct {
	code   int
	header http.Header
}

func newRecorder() *recorder { return &recorder{header: make(http.Header)} }

func (r *recorder) Header() http.Header         { return r.header }
func (r *recorder) Write(b []byte) (int, error) { return len(b), nil }
func (r *recorder) WriteHeader(code int)        { r.code = code }
