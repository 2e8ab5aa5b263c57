package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageforge/internal/orchestrator"
	"pageforge/internal/publish"
	"pageforge/internal/session"
	"pageforge/internal/store"
	"pageforge/internal/stream"
)

type scriptedRunner struct {
	events []stream.Event
}

func (r *scriptedRunner) Run(ctx context.Context, _ orchestrator.Request, s *stream.Stream) {
	for _, ev := range r.events {
		s.Emit(ctx, ev)
	}
	s.Close()
}

type fakePersister struct {
	err  error
	last publish.Request
}

func (p *fakePersister) Persist(_ context.Context, req publish.Request) (publish.Result, error) {
	p.last = req
	if p.err != nil {
		return publish.Result{}, p.err
	}
	return publish.Result{
		Path:       "/generated/solutions/test-page-abcd1234",
		PreviewURL: "https://cms.example/preview/test",
		LiveURL:    "https://cms.example/test",
	}, nil
}

func runEvents() []stream.Event {
	return []stream.Event{
		{Name: stream.EventGenerationStart, Data: stream.GenerationStart{Query: "q", EstimatedBlocks: 6}},
		{Name: stream.EventBlockStart, Data: stream.BlockStart{BlockType: "hero", Index: 0}},
		{Name: stream.EventBlockContent, Data: stream.BlockContent{HTML: `<div class="hero">hi</div>`}},
		{Name: stream.EventGenerationComplete, Data: stream.GenerationComplete{TotalBlocks: 1}},
	}
}

func newTestServer(t *testing.T, runner Runner, persister Persister) *Server {
	t.Helper()
	st, err := store.Load()
	require.NoError(t, err)
	return New(":0", runner, persister, publish.NewArchive(), nil, st, zap.NewNop())
}

func TestHandleGenerate_RequiresQuery(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, &fakePersister{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/generate", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerate_StreamsEvents(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{events: runEvents()}, &fakePersister{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/generate?query=hello", nil))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	first := strings.Index(body, "event: generation-start")
	last := strings.Index(body, "event: generation-complete")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, last, first)
	// Quotes inside the markup arrive as JSON string escapes.
	assert.Contains(t, body, `<div class=\"hero\">hi</div>`)
}

func TestHandlePersist_Success(t *testing.T) {
	p := &fakePersister{}
	s := newTestServer(t, &scriptedRunner{}, p)

	body := `{"query":"quick smoothie","title":"Smoothies","blocks":[{"html":"<div>a</div>","sectionStyle":"accent"}]}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/persist", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp persistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "/generated/solutions/test-page-abcd1234", resp.Path)
	assert.Equal(t, "https://cms.example/test", resp.URLs["live"])
	assert.Equal(t, "quick smoothie", p.last.Query)

	// The publish lands in the archive.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/pages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var pages struct {
		Pages []publish.Record `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pages))
	require.Len(t, pages.Pages, 1)
	assert.Equal(t, "Smoothies", pages.Pages[0].Title)
}

func TestHandlePersist_RecordsPathInSessionHistory(t *testing.T) {
	st, err := store.Load()
	require.NoError(t, err)
	sessions := session.New(8, time.Minute, zap.NewNop())
	sessions.Append(context.Background(), "sess-9", session.Entry{Query: "quick smoothie", Intent: "use-case"})
	s := New(":0", &scriptedRunner{}, &fakePersister{}, publish.NewArchive(), sessions, st, zap.NewNop())

	body := `{"query":"quick smoothie","session":"sess-9","blocks":[{"html":"<div>a</div>"}]}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/persist", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	history := sessions.History(context.Background(), "sess-9")
	require.Len(t, history, 1)
	assert.Equal(t, "/generated/solutions/test-page-abcd1234", history[0].GeneratedPath)
}

func TestHandlePersist_Failure(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, &fakePersister{err: fmt.Errorf("create page: conflict")})

	body := `{"query":"q","blocks":[{"html":"<div>a</div>"}]}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/persist", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp persistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "conflict")
}

func TestHandlePersist_ValidatesBody(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, &fakePersister{})

	for _, body := range []string{"{not json", `{"query":"","blocks":[]}`, `{"query":"q","blocks":[]}`} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/persist", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestHandlePages_EmptyArchive(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, &fakePersister{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/pages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pages":[]}`, rec.Body.String())
}

func TestHandleHealthz(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, &fakePersister{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string         `json:"status"`
		Store  map[string]int `json:"store"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Greater(t, resp.Store["products"], 0)
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, &fakePersister{})
	req := httptest.NewRequest("OPTIONS", "/api/persist", nil)
	req.Header.Set("Origin", "https://site.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://site.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}

func TestHandleWS_DeliversEventFrames(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{events: runEvents()}, &fakePersister{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?query=hello"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []string
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		got = append(got, frame.Event)
	}
	assert.Equal(t, []string{
		stream.EventGenerationStart,
		stream.EventBlockStart,
		stream.EventBlockContent,
		stream.EventGenerationComplete,
	}, got)
}
