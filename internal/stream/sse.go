package stream

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pageforge/internal/jsonx"
)

// DefaultHeartbeat keeps intermediaries from timing out an idle stream
// while a slow model call is in flight.
const DefaultHeartbeat = 15 * time.Second

// ServeSSE drains s onto w as server-sent events until the stream closes
// or the client goes away. Each event is written as an "event:" line with
// a single JSON "data:" line, interleaved with comment heartbeats.
func ServeSSE(w http.ResponseWriter, r *http.Request, s *Stream, heartbeat time.Duration, logger *zap.Logger) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-s.Events():
			if !open {
				return nil
			}
			if err := WriteSSE(w, ev); err != nil {
				logger.Debug("sse write failed, client likely gone", zap.Error(err))
				return err
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		case <-r.Context().Done():
			return r.Context().Err()
		}
	}
}

// WriteSSE encodes one event in SSE framing without flushing.
func WriteSSE(w http.ResponseWriter, ev Event) error {
	data, err := jsonx.MarshalNoEscape(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
	return err
}
