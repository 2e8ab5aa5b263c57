package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pageforge/internal/blocks"
	"pageforge/internal/images"
	"pageforge/internal/intent"
	"pageforge/internal/llm"
	"pageforge/internal/metrics"
	"pageforge/internal/page"
	"pageforge/internal/reasoning"
	"pageforge/internal/retrieval"
	"pageforge/internal/session"
	"pageforge/internal/store"
	"pageforge/internal/stream"
)

// Invoker is the slice of the model layer the orchestrator and its stages
// need.
type Invoker interface {
	Invoke(ctx context.Context, preset string, role llm.Role, req llm.Request) (llm.Result, error)
	ModelFor(preset string, role llm.Role) string
}

// Sessions is the slice of the session store the orchestrator needs.
type Sessions interface {
	History(ctx context.Context, sessionID string) []session.Entry
	Append(ctx context.Context, sessionID string, e session.Entry)
}

// Request describes one generation run.
type Request struct {
	Query         string
	SessionID     string
	Preset        string
	ClientContext session.ClientContext
}

const (
	// estimatedBlocks is announced before reasoning has run; typical
	// layouts carry four content blocks plus the synthesized reasoning
	// and follow-up.
	estimatedBlocks = 6

	defaultImageWait = 10 * time.Second
)

// Orchestrator drives one run end to end: classify, retrieve, reason,
// generate blocks serially in selection order, and emit the ordered event
// sequence. Stage failures degrade inside their stages; anything escaping
// them is caught here and surfaces as a single terminal error event.
type Orchestrator struct {
	inv        Invoker
	classifier *intent.Classifier
	retriever  *retrieval.Builder
	engine     *reasoning.Engine
	generator  *blocks.Generator
	resolver   *images.Resolver
	sessions   Sessions
	log        *zap.Logger

	defaultPreset string
	imageWait     time.Duration
}

func New(inv Invoker, st *store.Store, resolver *images.Resolver, sessions Sessions, defaultPreset string, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		inv:           inv,
		classifier:    intent.NewClassifier(inv, log),
		retriever:     retrieval.NewBuilder(st),
		engine:        reasoning.NewEngine(inv, log),
		generator:     blocks.NewGenerator(inv, st, log),
		resolver:      resolver,
		sessions:      sessions,
		log:           log,
		defaultPreset: defaultPreset,
		imageWait:     defaultImageWait,
	}
}

// SetImageWait overrides how long a finished run waits for outstanding
// image resolutions before completing.
func (o *Orchestrator) SetImageWait(d time.Duration) {
	if d > 0 {
		o.imageWait = d
	}
}

// SetLayoutCheck toggles the reasoning engine's validation-role layout
// re-check.
func (o *Orchestrator) SetLayoutCheck(on bool) {
	o.engine.SetSelfCheck(on)
}

// Run executes one generation and closes s after the terminal event. It is
// meant to be launched as a goroutine per request.
func (o *Orchestrator) Run(ctx context.Context, req Request, s *stream.Stream) {
	metrics.RunsStarted.Inc()
	started := time.Now()

	// Flipped before the terminal event goes out. Resolver goroutines that
	// finish after the cutoff check it and drop their announcement, so no
	// image-ready can trail generation-complete or error on the stream.
	var finished atomic.Bool

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("run failed with a panic", zap.Any("panic", r), zap.String("query", req.Query))
			metrics.RunsCompleted.WithLabelValues("error").Inc()
			finished.Store(true)
			s.Emit(ctx, stream.Event{Name: stream.EventError, Data: stream.Error{
				Message: "page generation failed",
				Code:    "internal",
			}})
		}
		s.Close()
	}()

	preset := req.Preset
	if preset == "" {
		preset = o.defaultPreset
	}
	runLog := o.log.With(zap.String("runId", uuid.NewString()[:8]), zap.String("preset", preset))
	runLog.Info("run started", zap.String("query", req.Query))

	s.Emit(ctx, stream.Event{Name: stream.EventGenerationStart, Data: stream.GenerationStart{
		Query:           req.Query,
		EstimatedBlocks: estimatedBlocks,
	}})

	history := o.buildHistory(ctx, req)

	s.Emit(ctx, stream.Event{Name: stream.EventReasoningStart, Data: stream.ReasoningStart{
		Model:  o.inv.ModelFor(preset, llm.RoleReasoning),
		Preset: preset,
	}})

	cls := o.classifier.Classify(ctx, preset, req.Query, history)
	s.Emit(ctx, stream.Event{Name: stream.EventReasoningStep, Data: stream.ReasoningStep{
		Stage:   "understanding",
		Title:   "Understanding your request",
		Content: describeIntent(cls),
	}})

	rctx := o.retriever.Build(req.Query, cls)
	s.Emit(ctx, stream.Event{Name: stream.EventReasoningStep, Data: stream.ReasoningStep{
		Stage:   "assessment",
		Title:   "Finding what will help",
		Content: rctx.ContentSummary,
	}})

	plan := o.engine.Plan(ctx, preset, req.Query, cls, rctx, history)
	s.Emit(ctx, stream.Event{Name: stream.EventReasoningStep, Data: stream.ReasoningStep{
		Stage:   "decision",
		Title:   "Deciding the page layout",
		Content: describeDecision(plan),
	}})
	s.Emit(ctx, stream.Event{Name: stream.EventReasoningComplete, Data: stream.ReasoningComplete{
		Confidence: plan.Result.Confidence,
		DurationMS: time.Since(started).Milliseconds(),
	}})

	var (
		blockTypes []string
		imageReqs  []blocks.ImageRequest
	)
	for i, sel := range pageSequence(plan.Result.SelectedBlocks) {
		s.Emit(ctx, stream.Event{Name: stream.EventBlockStart, Data: stream.BlockStart{
			BlockType: string(sel.Type),
			Index:     i,
		}})

		gen := o.generator.Generate(ctx, preset, req.Query, sel, rctx, plan.Result)
		s.Emit(ctx, stream.Event{Name: stream.EventBlockContent, Data: stream.BlockContent{
			HTML:         gen.Block.HTML,
			SectionStyle: gen.Block.SectionStyle,
		}})
		s.Emit(ctx, stream.Event{Name: stream.EventBlockRationale, Data: stream.BlockRationale{
			BlockType: string(gen.Block.Type),
			Rationale: sel.Rationale,
		}})

		blockTypes = append(blockTypes, string(gen.Block.Type))
		imageReqs = append(imageReqs, gen.Images...)
	}

	o.awaitImages(ctx, runLog, imageReqs, s, &finished)

	finished.Store(true)
	s.Emit(ctx, stream.Event{Name: stream.EventGenerationComplete, Data: stream.GenerationComplete{
		TotalBlocks: len(blockTypes),
		DurationMS:  time.Since(started).Milliseconds(),
		Intent:      cls,
		Reasoning: stream.CompletionReasoning{
			JourneyStage:       plan.Result.UserJourney.CurrentStage,
			Confidence:         plan.Result.Confidence,
			NextBestAction:     plan.Result.UserJourney.NextBestAction,
			SuggestedFollowUps: plan.Result.UserJourney.SuggestedFollowUps,
		},
		Recommendations: recommendations(rctx, blockTypes),
	}})
	metrics.RunsCompleted.WithLabelValues("ok").Inc()
	runLog.Info("run completed",
		zap.Int("blocks", len(blockTypes)),
		zap.Duration("took", time.Since(started)),
		zap.Bool("reasoningFallback", plan.Fallback))

	o.sessions.Append(ctx, req.SessionID, session.Entry{
		Query:    req.Query,
		Intent:   string(cls.IntentType),
		Entities: cls.Entities,
	})
}

// pageSequence splices the synthesized reasoning-user block in front of the
// terminal follow-up. The model never selects it; the page always carries it
// so visitors see why these blocks were chosen.
func pageSequence(sels []page.Selection) []page.Selection {
	if len(sels) == 0 {
		return sels
	}
	seq := make([]page.Selection, 0, len(sels)+1)
	seq = append(seq, sels[:len(sels)-1]...)
	seq = append(seq, page.Selection{
		Type:      page.BlockReasoningUser,
		Rationale: "Explains how this page was put together for your query.",
	})
	return append(seq, sels[len(sels)-1])
}

func (o *Orchestrator) buildHistory(ctx context.Context, req Request) []intent.HistoryItem {
	history := session.HistoryItems(o.sessions.History(ctx, req.SessionID))
	seen := make(map[string]bool, len(history))
	for _, h := range history {
		seen[h.Query] = true
	}
	// Client context supplements server-side history; it covers sessions
	// the server has already evicted.
	for _, q := range req.ClientContext.PreviousQueries {
		if q != "" && !seen[q] {
			history = append(history, intent.HistoryItem{Query: q})
		}
	}
	return history
}

func (o *Orchestrator) awaitImages(ctx context.Context, log *zap.Logger, reqs []blocks.ImageRequest, s *stream.Stream, finished *atomic.Bool) {
	if o.resolver == nil || len(reqs) == 0 {
		return
	}
	done := o.resolver.Resolve(ctx, uuid.NewString(), reqs, func(imageID, url string) {
		if finished.Load() {
			return
		}
		s.Emit(ctx, stream.Event{Name: stream.EventImageReady, Data: stream.ImageReady{
			ImageID: imageID,
			URL:     url,
		}})
	})
	select {
	case <-done:
	case <-time.After(o.imageWait):
		log.Warn("images still resolving at completion, leaving placeholders",
			zap.Int("outstanding", len(reqs)))
	case <-ctx.Done():
	}
}

func describeIntent(cls intent.Classification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This looks like a %s query at the %s stage.", cls.IntentType, cls.JourneyStage)
	if len(cls.Entities.UseCases) > 0 {
		fmt.Fprintf(&b, " You care about %s.", strings.Join(cls.Entities.UseCases, ", "))
	}
	if len(cls.Entities.Products) > 0 {
		fmt.Fprintf(&b, " Mentioned products: %s.", strings.Join(cls.Entities.Products, ", "))
	}
	return b.String()
}

func describeDecision(plan reasoning.Output) string {
	if plan.Result.Reasoning.FinalDecision != "" {
		return plan.Result.Reasoning.FinalDecision
	}
	types := make([]string, 0, len(plan.Result.SelectedBlocks))
	for _, sel := range plan.Result.SelectedBlocks {
		types = append(types, string(sel.Type))
	}
	return "Building the page from: " + strings.Join(types, ", ")
}

func recommendations(rctx retrieval.Context, blockTypes []string) stream.Recommendations {
	rec := stream.Recommendations{
		Products:   []string{},
		Recipes:    []string{},
		BlockTypes: blockTypes,
	}
	for _, p := range rctx.RelevantProducts {
		rec.Products = append(rec.Products, p.Name)
	}
	for _, r := range rctx.RelevantRecipes {
		rec.Recipes = append(rec.Recipes, r.Name)
	}
	return rec
}
