package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"pageforge/internal/blocks"
	"pageforge/internal/logging"
)

// Uploader is the slice of AssetStore the resolver needs.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

const (
	maxImageBytes   = 8 << 20
	resolverWorkers = 4
)

// Resolver turns image placeholders into final URLs on its own schedule,
// independent of block delivery. Resolution never fails a run: any fetch
// or upload problem falls back to announcing the source URL as-is.
type Resolver struct {
	assets Uploader
	client *http.Client
	log    *zap.Logger
}

func NewResolver(assets Uploader, client *http.Client, log *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Resolver{assets: assets, client: client, log: logging.Stage(log, "images")}
}

// Resolve announces a final URL for every request via emit, from worker
// goroutines. The returned channel closes when all requests have been
// announced.
func (r *Resolver) Resolve(ctx context.Context, runID string, reqs []blocks.ImageRequest, emit func(imageID, url string)) <-chan struct{} {
	done := make(chan struct{})
	if len(reqs) == 0 {
		close(done)
		return done
	}

	jobs := make(chan blocks.ImageRequest)
	results := make(chan struct{}, len(reqs))
	workers := resolverWorkers
	if len(reqs) < workers {
		workers = len(reqs)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for req := range jobs {
				emit(req.ID, r.resolveOne(ctx, runID, req))
				results <- struct{}{}
			}
		}()
	}

	go func() {
		for _, req := range reqs {
			jobs <- req
		}
		close(jobs)
		for range reqs {
			<-results
		}
		close(done)
	}()
	return done
}

func (r *Resolver) resolveOne(ctx context.Context, runID string, req blocks.ImageRequest) string {
	source := strings.TrimSpace(req.SourceURL)
	if r.assets == nil || source == "" || !strings.HasPrefix(source, "http") {
		// Relative corpus paths are served by the site itself.
		return source
	}

	data, contentType, err := r.fetch(ctx, source)
	if err != nil {
		r.log.Warn("image fetch failed, passing source through",
			zap.String("imageId", req.ID), zap.Error(err))
		return source
	}

	key := runID + "/" + req.ID + path.Ext(source)
	url, err := r.assets.Upload(ctx, key, data, contentType)
	if err != nil {
		r.log.Warn("image upload failed, passing source through",
			zap.String("imageId", req.ID), zap.Error(err))
		return source
	}
	return url
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
