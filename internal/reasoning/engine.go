package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pageforge/internal/blocks"
	"pageforge/internal/intent"
	"pageforge/internal/jsonx"
	"pageforge/internal/llm"
	"pageforge/internal/logging"
	"pageforge/internal/metrics"
	"pageforge/internal/page"
	"pageforge/internal/retrieval"
)

// Invoker is the slice of the model layer the engine needs.
type Invoker interface {
	Invoke(ctx context.Context, preset string, role llm.Role, req llm.Request) (llm.Result, error)
}

// Engine turns (query, intent, retrieval context, history) into an ordered
// block selection with a user-facing rationale. Like the classifier it
// never fails: structural problems fall back to the static intent-keyed
// layout, and both paths pass through Normalize.
type Engine struct {
	inv       Invoker
	log       *zap.Logger
	selfCheck bool
}

func NewEngine(inv Invoker, log *zap.Logger) *Engine {
	return &Engine{inv: inv, log: logging.Stage(log, "reasoning")}
}

// SetSelfCheck enables a second pass on the validation role that re-checks
// the planned layout against the classified intent. Off by default.
func (e *Engine) SetSelfCheck(on bool) {
	e.selfCheck = on
}

// Output pairs the normalized result with how it was obtained and the
// model/preset used, which the event stream reports.
type Output struct {
	Result   page.ReasoningResult
	Fallback bool
	Model    string
}

func reasoningSystem() string {
	var b strings.Builder
	b.WriteString("You are the layout planner for generated marketing pages.\n\n")
	b.WriteString("Available block types:\n")
	for _, t := range blocks.SelectableTypes() {
		b.WriteString("- ")
		b.WriteString(string(t))
		b.WriteString("\n")
	}
	b.WriteString(`
Never select "reasoning" or "follow-up" blocks; they are added automatically.

Journey-stage guidelines:
- exploring: lead with hero and use-case-cards, keep product detail light
- comparing: comparison-table and testimonials earn their place
- deciding: spec-highlight, faq, and a cta-banner close the page

Respond with one JSON object only:
{"selectedBlocks":[{"type":"hero","priority":1,"rationale":"...","contentGuidance":"..."}],
 "reasoning":{"intentAnalysis":"...","userNeedsAssessment":"...",
   "blockSelectionRationale":["..."],"alternativesConsidered":["..."],"finalDecision":"..."},
 "userJourney":{"currentStage":"exploring","nextBestAction":"...","suggestedFollowUps":["..."]},
 "confidence":0.0}`)
	return b.String()
}

// Plan runs the reasoning role and returns a normalized result.
func (e *Engine) Plan(ctx context.Context, preset, query string, cls intent.Classification, rctx retrieval.Context, history []intent.HistoryItem) Output {
	prompt := buildReasoningPrompt(query, cls, rctx, history)

	res, err := e.inv.Invoke(ctx, preset, llm.RoleReasoning, llm.Request{
		System: reasoningSystem(),
		Prompt: prompt,
	})
	if err != nil {
		e.log.Warn("model call failed, using static layout", zap.Error(err))
		metrics.StageFallbacks.WithLabelValues("reasoning").Inc()
		return Output{Result: Normalize(Fallback(cls)), Fallback: true}
	}

	parsed := jsonx.ParseOr(res.Text, Fallback(cls), validateResult)
	if parsed.Fallback {
		e.log.Warn("unusable reasoning output, using static layout",
			zap.String("reason", parsed.Reason))
		metrics.StageFallbacks.WithLabelValues("reasoning").Inc()
	}
	result := Normalize(parsed.Value)
	if e.selfCheck && !parsed.Fallback && !e.checkLayout(ctx, preset, cls, result) {
		e.log.Warn("layout rejected by self-check, using static layout")
		metrics.StageFallbacks.WithLabelValues("reasoning").Inc()
		return Output{Result: Normalize(Fallback(cls)), Fallback: true, Model: res.Model}
	}
	return Output{
		Result:   result,
		Fallback: parsed.Fallback,
		Model:    res.Model,
	}
}

// checkLayout asks the validation role whether the planned block order
// serves the classified intent. Any error approves: the check is advisory
// and must never make a run fail.
func (e *Engine) checkLayout(ctx context.Context, preset string, cls intent.Classification, r page.ReasoningResult) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s, journey stage: %s\nPlanned blocks in order:\n",
		cls.IntentType, cls.JourneyStage)
	for _, s := range r.SelectedBlocks {
		fmt.Fprintf(&b, "%d. %s\n", s.Priority, s.Type)
	}
	res, err := e.inv.Invoke(ctx, preset, llm.RoleValidation, llm.Request{
		System: "You review planned page layouts. Answer with the single word APPROVE if the block order serves the stated intent and journey stage, or REJECT if it clearly does not.",
		Prompt: b.String(),
	})
	if err != nil {
		return true
	}
	return !strings.Contains(strings.ToUpper(res.Text), "REJECT")
}

func validateResult(r page.ReasoningResult) error {
	if len(r.SelectedBlocks) == 0 {
		return fmt.Errorf("selectedBlocks is empty")
	}
	if r.Reasoning.IntentAnalysis == "" && r.Reasoning.FinalDecision == "" {
		return fmt.Errorf("reasoning trace is missing")
	}
	if r.UserJourney.CurrentStage == "" {
		return fmt.Errorf("userJourney is missing")
	}
	return nil
}

func buildReasoningPrompt(query string, cls intent.Classification, rctx retrieval.Context, history []intent.HistoryItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	fmt.Fprintf(&b, "Intent: %s (confidence %.2f, stage %s)\n",
		cls.IntentType, cls.Confidence, cls.JourneyStage)

	fmt.Fprintf(&b, "\nRetrieved context: %s\n", rctx.ContentSummary)
	if len(rctx.RelevantProducts) > 0 {
		b.WriteString("Products:\n")
		for _, p := range rctx.RelevantProducts {
			fmt.Fprintf(&b, "- %s (%s, $%.0f): %s\n", p.Name, p.ModelNumber, p.Price, p.Description)
		}
	}
	if len(rctx.RelevantRecipes) > 0 {
		b.WriteString("Recipes:\n")
		for _, r := range rctx.RelevantRecipes {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Name, r.Category, r.Description)
		}
	}
	if rctx.DetectedPersona != nil {
		fmt.Fprintf(&b, "Likely persona: %s — %s\n",
			rctx.DetectedPersona.Name, rctx.DetectedPersona.Description)
	}
	if len(history) > 0 {
		if len(history) > 5 {
			history = history[len(history)-5:]
		}
		enc, _ := json.Marshal(history)
		fmt.Fprintf(&b, "\nRecent session queries: %s\n", enc)
	}
	return b.String()
}
