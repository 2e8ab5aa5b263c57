package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pageforge/internal/jsonx"
	"pageforge/internal/llm"
	"pageforge/internal/logging"
	"pageforge/internal/metrics"
)

// Invoker is the slice of the model layer the classifier needs.
type Invoker interface {
	Invoke(ctx context.Context, preset string, role llm.Role, req llm.Request) (llm.Result, error)
}

// Classifier turns a free-text query into a structured intent. It never
// returns an error to the caller: every failure path yields Default().
type Classifier struct {
	inv Invoker
	log *zap.Logger
}

func NewClassifier(inv Invoker, log *zap.Logger) *Classifier {
	return &Classifier{inv: inv, log: logging.Stage(log, "classification")}
}

const classifierSystem = `You classify shopping queries for a kitchen appliance brand.

Check the SPECIAL categories first, in this order, before any generic category:
support, gift, medical, accessibility, partnership. These change the tone of
the generated page and must win over generic matches.

Generic categories: discovery, comparison, use-case, product-detail, purchase.

Journey stages: exploring (browsing, open-ended), comparing (weighing named
options), deciding (ready to buy, asking about price/warranty/shipping).

Respond with one JSON object only:
{"intentType":"...","confidence":0.0,
 "entities":{"products":[],"useCases":[],"features":[],"ingredients":[],"priceRange":""},
 "journeyStage":"exploring"}`

// Classify runs the classification role. The optional history gives the
// model short session context.
func (c *Classifier) Classify(ctx context.Context, preset, query string, history []HistoryItem) Classification {
	prompt := buildClassifierPrompt(query, history)

	res, err := c.inv.Invoke(ctx, preset, llm.RoleClassification, llm.Request{
		System: classifierSystem,
		Prompt: prompt,
	})
	if err != nil {
		c.log.Warn("model call failed, using default intent", zap.Error(err))
		metrics.StageFallbacks.WithLabelValues("classification").Inc()
		return Default()
	}

	parsed := jsonx.ParseOr(res.Text, Default(), func(v Classification) error {
		if v.IntentType == "" {
			return fmt.Errorf("missing intentType")
		}
		return nil
	})
	if parsed.Fallback {
		c.log.Warn("unparseable classification, using default intent",
			zap.String("reason", parsed.Reason))
		metrics.StageFallbacks.WithLabelValues("classification").Inc()
		return Default()
	}
	return Normalize(parsed.Value)
}

func buildClassifierPrompt(query string, history []HistoryItem) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n")
	if len(history) > 0 {
		if len(history) > 5 {
			history = history[len(history)-5:]
		}
		b.WriteString("\nRecent session queries (oldest first):\n")
		enc, _ := json.Marshal(history)
		b.Write(enc)
		b.WriteString("\n")
	}
	return b.String()
}
