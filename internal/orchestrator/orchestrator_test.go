package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageforge/internal/blocks"
	"pageforge/internal/images"
	"pageforge/internal/llm"
	"pageforge/internal/session"
	"pageforge/internal/store"
	"pageforge/internal/stream"
)

const classificationJSON = `{"intentType":"use-case","confidence":0.88,
"entities":{"products":[],"useCases":["smoothies"],"features":[],"ingredients":["banana"]},
"journeyStage":"exploring"}`

const reasoningJSON = `{
"selectedBlocks":[
 {"type":"hero","priority":1,"rationale":"orient the visitor","contentGuidance":"kid-friendly"},
 {"type":"recipe-cards","priority":2,"rationale":"show quick recipes","contentGuidance":"under 10 minutes"},
 {"type":"product-cards","priority":3,"rationale":"recommend blenders","contentGuidance":"family sized"},
 {"type":"follow-up","priority":4,"rationale":"","contentGuidance":""}],
"reasoning":{"intentAnalysis":"wants fast smoothies","userNeedsAssessment":"speed and kid appeal",
 "blockSelectionRationale":["hero orients"],"alternativesConsidered":["comparison-table"],
 "finalDecision":"lead with recipes"},
"userJourney":{"currentStage":"exploring","nextBestAction":"try a recipe","suggestedFollowUps":["Which blender is quietest?"]},
"confidence":0.8}`

// roleInvoker scripts one reply per role and can fail content calls whose
// system prompt mentions a marker.
type roleInvoker struct {
	replies     map[llm.Role]string
	failContent string
}

func (r *roleInvoker) Invoke(_ context.Context, _ string, role llm.Role, req llm.Request) (llm.Result, error) {
	if role == llm.RoleContent && r.failContent != "" && strings.Contains(req.System, r.failContent) {
		return llm.Result{}, fmt.Errorf("scripted failure")
	}
	reply, ok := r.replies[role]
	if !ok {
		reply = `<section><h2>Generated copy</h2></section>`
	}
	return llm.Result{Text: reply, Model: "test-model"}, nil
}

func (r *roleInvoker) ModelFor(string, llm.Role) string { return "test-model" }

func drainRun(t *testing.T, o *Orchestrator, req Request) []stream.Event {
	t.Helper()
	s := stream.New()
	o.Run(context.Background(), req, s)

	var events []stream.Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func names(events []stream.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Name)
	}
	return out
}

func newTestOrchestrator(t *testing.T, inv Invoker, sessions *session.Store) *Orchestrator {
	t.Helper()
	st, err := store.Load()
	require.NoError(t, err)
	resolver := images.NewResolver(nil, nil, zap.NewNop())
	o := New(inv, st, resolver, sessions, "standard", zap.NewNop())
	o.SetImageWait(2 * time.Second)
	return o
}

func TestRun_FullStreamForSmoothieQuery(t *testing.T) {
	inv := &roleInvoker{replies: map[llm.Role]string{
		llm.RoleClassification: classificationJSON,
		llm.RoleReasoning:      reasoningJSON,
	}}
	sessions := session.New(8, time.Minute, zap.NewNop())
	o := newTestOrchestrator(t, inv, sessions)

	events := drainRun(t, o, Request{Query: "quick smoothie for kids", SessionID: "sess-1"})
	got := names(events)

	require.NotEmpty(t, got)
	assert.Equal(t, stream.EventGenerationStart, got[0])
	assert.Equal(t, stream.EventGenerationComplete, got[len(got)-1])

	var steps, imageReady int
	for _, n := range got {
		switch n {
		case stream.EventReasoningStep:
			steps++
		case stream.EventImageReady:
			imageReady++
		case stream.EventError:
			t.Fatalf("unexpected error event in %v", got)
		}
	}
	assert.Equal(t, 3, steps)
	// Hero and recipe cards each carry a representative image.
	assert.Equal(t, 2, imageReady)

	// Block triplets arrive in selection order.
	var blockOrder []string
	for _, ev := range events {
		if ev.Name == stream.EventBlockStart {
			blockOrder = append(blockOrder, ev.Data.(stream.BlockStart).BlockType)
		}
	}
	assert.Equal(t, []string{"hero", "recipe-cards", "product-cards", "reasoning-user", "follow-up"}, blockOrder)

	complete := events[len(events)-1].Data.(stream.GenerationComplete)
	assert.Equal(t, "use-case", string(complete.Intent.IntentType))
	assert.Contains(t, complete.Intent.Entities.UseCases, "smoothies")
	assert.Equal(t, blockOrder, complete.Recommendations.BlockTypes)
	assert.NotEmpty(t, complete.Recommendations.Products)
	assert.NotEmpty(t, complete.Recommendations.Recipes)
	assert.Equal(t, 5, complete.TotalBlocks)
	assert.Equal(t, "try a recipe", complete.Reasoning.NextBestAction)

	// The session window records the run after completion.
	history := sessions.History(context.Background(), "sess-1")
	require.Len(t, history, 1)
	assert.Equal(t, "quick smoothie for kids", history[0].Query)
	assert.Equal(t, "use-case", history[0].Intent)
}

func TestRun_EventOrderContract(t *testing.T) {
	inv := &roleInvoker{replies: map[llm.Role]string{
		llm.RoleClassification: classificationJSON,
		llm.RoleReasoning:      reasoningJSON,
	}}
	o := newTestOrchestrator(t, inv, session.New(8, time.Minute, zap.NewNop()))

	events := drainRun(t, o, Request{Query: "quick smoothie for kids", SessionID: "sess-2"})

	rank := map[string]int{
		stream.EventGenerationStart:    0,
		stream.EventReasoningStart:     1,
		stream.EventReasoningStep:      2,
		stream.EventReasoningComplete:  3,
		stream.EventBlockStart:         4,
		stream.EventBlockContent:       4,
		stream.EventBlockRationale:     4,
		stream.EventImageReady:         5,
		stream.EventGenerationComplete: 6,
	}
	last := -1
	for _, ev := range events {
		r, ok := rank[ev.Name]
		require.True(t, ok, "unknown event %s", ev.Name)
		assert.GreaterOrEqual(t, r, last, "event %s out of order", ev.Name)
		if r > last {
			last = r
		}
	}

	// Each block-start is followed by its content then its rationale.
	for i, ev := range events {
		if ev.Name == stream.EventBlockStart {
			require.Less(t, i+2, len(events))
			assert.Equal(t, stream.EventBlockContent, events[i+1].Name)
			assert.Equal(t, stream.EventBlockRationale, events[i+2].Name)
		}
	}
}

func TestRun_SingleBlockFailureIsIsolated(t *testing.T) {
	inv := &roleInvoker{
		replies: map[llm.Role]string{
			llm.RoleClassification: classificationJSON,
			llm.RoleReasoning:      reasoningJSON,
		},
		failContent: "recipe-cards",
	}
	o := newTestOrchestrator(t, inv, session.New(8, time.Minute, zap.NewNop()))

	events := drainRun(t, o, Request{Query: "quick smoothie for kids", SessionID: "sess-3"})

	var contents []stream.BlockContent
	for _, ev := range events {
		require.NotEqual(t, stream.EventError, ev.Name)
		if ev.Name == stream.EventBlockContent {
			contents = append(contents, ev.Data.(stream.BlockContent))
		}
	}
	require.Len(t, contents, 5)
	assert.Contains(t, contents[1].HTML, "Content generation failed")
	// Later blocks still rendered.
	assert.Contains(t, contents[2].HTML, "product-cards")
	assert.Equal(t, stream.EventGenerationComplete, events[len(events)-1].Name)
}

func TestRun_ModelFailuresEverywhereStillCompleteViaFallbacks(t *testing.T) {
	inv := &roleInvoker{replies: map[llm.Role]string{
		llm.RoleClassification: "not json at all",
		llm.RoleReasoning:      "also not json",
	}}
	o := newTestOrchestrator(t, inv, session.New(8, time.Minute, zap.NewNop()))

	events := drainRun(t, o, Request{Query: "anything", SessionID: "sess-4"})
	got := names(events)

	require.NotEmpty(t, got)
	assert.Equal(t, stream.EventGenerationComplete, got[len(got)-1])
	assert.NotContains(t, got, stream.EventError)

	complete := events[len(events)-1].Data.(stream.GenerationComplete)
	assert.Equal(t, "discovery", string(complete.Intent.IntentType))
	require.NotEmpty(t, complete.Recommendations.BlockTypes)
	assert.Equal(t, "follow-up", complete.Recommendations.BlockTypes[len(complete.Recommendations.BlockTypes)-1])
}

func TestRun_ReasoningBlockSynthesizedBeforeFollowUp(t *testing.T) {
	inv := &roleInvoker{replies: map[llm.Role]string{
		llm.RoleClassification: classificationJSON,
		llm.RoleReasoning:      reasoningJSON,
	}}
	o := newTestOrchestrator(t, inv, session.New(8, time.Minute, zap.NewNop()))

	events := drainRun(t, o, Request{Query: "quick smoothie for kids", SessionID: "sess-6"})

	var contents []stream.BlockContent
	for _, ev := range events {
		if ev.Name == stream.EventBlockContent {
			contents = append(contents, ev.Data.(stream.BlockContent))
		}
	}
	require.GreaterOrEqual(t, len(contents), 2)

	explanation := contents[len(contents)-2]
	assert.Contains(t, explanation.HTML, `class="reasoning-user"`)
	assert.Contains(t, explanation.HTML, "wants fast smoothies")
	assert.Contains(t, explanation.HTML, "lead with recipes")
	assert.Contains(t, contents[len(contents)-1].HTML, `class="follow-up"`)
}

// gatedUploader parks every upload until the gate closes, holding image
// resolutions open past the run's image wait.
type gatedUploader struct {
	gate chan struct{}
}

func (u *gatedUploader) Upload(context.Context, string, []byte, string) (string, error) {
	<-u.gate
	return "https://cdn.example.com/late.jpg", nil
}

func TestRun_LateImagesDroppedAfterCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("imgdata"))
	}))
	defer srv.Close()

	gate := make(chan struct{})
	resolver := images.NewResolver(&gatedUploader{gate: gate}, srv.Client(), zap.NewNop())

	inv := &roleInvoker{replies: map[llm.Role]string{
		llm.RoleClassification: classificationJSON,
		llm.RoleReasoning:      reasoningJSON,
	}}
	st, err := store.Load()
	require.NoError(t, err)
	o := New(inv, st, resolver, session.New(8, time.Minute, zap.NewNop()), "standard", zap.NewNop())
	o.SetImageWait(10 * time.Millisecond)

	s := stream.New()
	reqs := []blocks.ImageRequest{{ID: "img-late", SourceURL: srv.URL + "/a.jpg"}}
	var finished atomic.Bool
	o.awaitImages(context.Background(), zap.NewNop(), reqs, s, &finished)

	// Mirror the run's terminal cutoff, then let the straggler finish
	// while the stream is still open.
	finished.Store(true)
	s.Emit(context.Background(), stream.Event{Name: stream.EventGenerationComplete, Data: stream.GenerationComplete{}})
	close(gate)
	time.Sleep(50 * time.Millisecond)
	s.Close()

	var got []string
	for ev := range s.Events() {
		got = append(got, ev.Name)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, stream.EventGenerationComplete, got[len(got)-1])
	assert.NotContains(t, got, stream.EventImageReady)
}

func TestRun_ClientContextSupplementsHistory(t *testing.T) {
	inv := &roleInvoker{replies: map[llm.Role]string{
		llm.RoleClassification: classificationJSON,
		llm.RoleReasoning:      reasoningJSON,
	}}
	sessions := session.New(8, time.Minute, zap.NewNop())
	sessions.Append(context.Background(), "sess-5", session.Entry{Query: "compare blenders", Intent: "comparison"})
	o := newTestOrchestrator(t, inv, sessions)

	req := Request{
		Query:         "quick smoothie for kids",
		SessionID:     "sess-5",
		ClientContext: session.ClientContext{PreviousQueries: []string{"compare blenders", "gift ideas"}},
	}
	history := o.buildHistory(context.Background(), req)

	require.Len(t, history, 2)
	assert.Equal(t, "compare blenders", history[0].Query)
	assert.Equal(t, "gift ideas", history[1].Query)
}
