package llm

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeClient returns scripted responses for offline runs and tests. Replies
// are matched by substring against the prompt, falling back to a default
// response; an error can be forced for any call whose prompt contains the
// configured trigger.
type FakeClient struct {
	mu       sync.Mutex
	replies  []fakeReply
	fallback string
	failOn   string
	failErr  error
	calls    []Request
}

type fakeReply struct {
	contains string
	text     string
}

func NewFakeClient(fallback string) *FakeClient {
	return &FakeClient{fallback: fallback}
}

// Reply registers a scripted response for prompts containing the substring.
func (f *FakeClient) Reply(contains, text string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, fakeReply{contains: contains, text: text})
	return f
}

// FailOn forces err for any prompt containing the substring.
func (f *FakeClient) FailOn(contains string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = contains
	f.failErr = err
	return f
}

// Calls returns a copy of every request seen so far.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	full := req.System + "\n" + req.Prompt
	if f.failOn != "" && contains(full, f.failOn) {
		return Result{}, f.failErr
	}
	for _, r := range f.replies {
		if contains(full, r.contains) {
			return Result{Text: r.text, Duration: time.Millisecond, Model: "fake"}, nil
		}
	}
	return Result{Text: f.fallback, Duration: time.Millisecond, Model: "fake"}, nil
}

func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
