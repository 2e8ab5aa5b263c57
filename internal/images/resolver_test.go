package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageforge/internal/blocks"
)

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", assert.AnError
	}
	f.keys = append(f.keys, key)
	return "https://assets.example/" + key, nil
}

type emitted struct {
	mu   sync.Mutex
	urls map[string]string
}

func (e *emitted) emit(id, url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.urls == nil {
		e.urls = map[string]string{}
	}
	e.urls[id] = url
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver did not finish")
	}
}

func TestResolve_UploadsAbsoluteSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("webp-bytes"))
	}))
	defer srv.Close()

	up := &fakeUploader{}
	r := NewResolver(up, srv.Client(), zap.NewNop())
	var got emitted

	done := r.Resolve(context.Background(), "run-1", []blocks.ImageRequest{
		{ID: "img-a", SourceURL: srv.URL + "/vx-750.webp"},
	}, got.emit)
	waitDone(t, done)

	require.Equal(t, []string{"run-1/img-a.webp"}, up.keys)
	assert.Equal(t, "https://assets.example/run-1/img-a.webp", got.urls["img-a"])
}

func TestResolve_RelativeSourcePassesThrough(t *testing.T) {
	up := &fakeUploader{}
	r := NewResolver(up, nil, zap.NewNop())
	var got emitted

	done := r.Resolve(context.Background(), "run-2", []blocks.ImageRequest{
		{ID: "img-b", SourceURL: "/images/vx-350.webp"},
	}, got.emit)
	waitDone(t, done)

	assert.Empty(t, up.keys)
	assert.Equal(t, "/images/vx-350.webp", got.urls["img-b"])
}

func TestResolve_FetchFailureFallsBackToSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(&fakeUploader{}, srv.Client(), zap.NewNop())
	var got emitted

	done := r.Resolve(context.Background(), "run-3", []blocks.ImageRequest{
		{ID: "img-c", SourceURL: srv.URL + "/missing.webp"},
	}, got.emit)
	waitDone(t, done)

	assert.Equal(t, srv.URL+"/missing.webp", got.urls["img-c"])
}

func TestResolve_UploadFailureFallsBackToSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	r := NewResolver(&fakeUploader{fail: true}, srv.Client(), zap.NewNop())
	var got emitted

	done := r.Resolve(context.Background(), "run-4", []blocks.ImageRequest{
		{ID: "img-d", SourceURL: srv.URL + "/a.webp"},
	}, got.emit)
	waitDone(t, done)

	assert.Equal(t, srv.URL+"/a.webp", got.urls["img-d"])
}

func TestResolve_NoRequestsClosesImmediately(t *testing.T) {
	r := NewResolver(nil, nil, zap.NewNop())
	done := r.Resolve(context.Background(), "run-5", nil, func(string, string) {
		t.Fatal("unexpected emit")
	})
	waitDone(t, done)
}

func TestResolve_AllRequestsAnnounced(t *testing.T) {
	up := &fakeUploader{}
	r := NewResolver(up, nil, zap.NewNop())
	var got emitted

	reqs := []blocks.ImageRequest{
		{ID: "img-1", SourceURL: "/images/one.webp"},
		{ID: "img-2", SourceURL: "/images/two.webp"},
		{ID: "img-3", SourceURL: "/images/three.webp"},
	}
	done := r.Resolve(context.Background(), "run-6", reqs, got.emit)
	waitDone(t, done)

	assert.Len(t, got.urls, 3)
}
