package stream

import (
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Image arrivals race against block delivery: the resolver may finish
// before the markup holding the placeholder has reached the consumer.
// Binder absorbs that race. Arrivals for unseen placeholders are parked
// and retried on a fixed interval, and dropped after a bounded number of
// attempts so a placeholder that never materializes cannot leak a
// goroutine.
const (
	DefaultBindInterval = 100 * time.Millisecond
	DefaultBindAttempts = 20
)

var imageIDRE = regexp.MustCompile(`data-image-id="([^"]+)"`)

// ExtractImageIDs returns every image placeholder ID embedded in markup.
func ExtractImageIDs(markup string) []string {
	matches := imageIDRE.FindAllStringSubmatch(markup, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

type Binder struct {
	interval time.Duration
	attempts int
	logger   *zap.Logger

	mu      sync.Mutex
	present map[string]bool
	bound   map[string]string
	pending map[string]string
	dropped int

	wg sync.WaitGroup
}

func NewBinder(interval time.Duration, attempts int, logger *zap.Logger) *Binder {
	if interval <= 0 {
		interval = DefaultBindInterval
	}
	if attempts <= 0 {
		attempts = DefaultBindAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{
		interval: interval,
		attempts: attempts,
		logger:   logger,
		present:  make(map[string]bool),
		bound:    make(map[string]string),
		pending:  make(map[string]string),
	}
}

// ObserveMarkup registers the placeholders contained in a delivered block
// and immediately binds any arrival already waiting for one of them.
func (b *Binder) ObserveMarkup(markup string) {
	ids := ExtractImageIDs(markup)
	if len(ids) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.present[id] = true
		if url, ok := b.pending[id]; ok {
			delete(b.pending, id)
			b.bound[id] = url
		}
	}
}

// OnImageReady binds url to its placeholder, or parks it for retry when
// the placeholder has not been observed yet.
func (b *Binder) OnImageReady(imageID, url string) {
	b.mu.Lock()
	if b.present[imageID] {
		b.bound[imageID] = url
		b.mu.Unlock()
		return
	}
	if _, waiting := b.pending[imageID]; waiting {
		b.pending[imageID] = url
		b.mu.Unlock()
		return
	}
	b.pending[imageID] = url
	b.mu.Unlock()

	b.wg.Add(1)
	go b.retry(imageID)
}

func (b *Binder) retry(imageID string) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < b.attempts; attempt++ {
		<-ticker.C
		b.mu.Lock()
		url, waiting := b.pending[imageID]
		if !waiting {
			// ObserveMarkup already picked it up.
			b.mu.Unlock()
			return
		}
		if b.present[imageID] {
			delete(b.pending, imageID)
			b.bound[imageID] = url
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	delete(b.pending, imageID)
	b.dropped++
	b.mu.Unlock()
	b.logger.Warn("image arrival never matched a placeholder, dropping",
		zap.String("imageId", imageID),
		zap.Int("attempts", b.attempts))
}

// Bound returns a snapshot of resolved placeholder bindings.
func (b *Binder) Bound() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.bound))
	for k, v := range b.bound {
		out[k] = v
	}
	return out
}

// Dropped reports how many arrivals were discarded at the retry ceiling.
func (b *Binder) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Wait blocks until all retry loops have finished. Intended for shutdown
// and tests.
func (b *Binder) Wait() {
	b.wg.Wait()
}
