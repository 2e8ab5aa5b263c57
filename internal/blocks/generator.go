package blocks

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pageforge/internal/jsonx"
	"pageforge/internal/llm"
	"pageforge/internal/logging"
	"pageforge/internal/metrics"
	"pageforge/internal/page"
	"pageforge/internal/retrieval"
	"pageforge/internal/store"
)

// Invoker is the slice of the model layer the generator needs.
type Invoker interface {
	Invoke(ctx context.Context, preset string, role llm.Role, req llm.Request) (llm.Result, error)
}

// ImageRequest asks the image pipeline to resolve a placeholder id to a
// final URL. The same id is embedded in the block markup as a
// data-image-id attribute.
type ImageRequest struct {
	ID        string
	SourceURL string
	Alt       string
}

// Generated pairs a rendered block with the image placeholders it embeds.
type Generated struct {
	Block  page.GeneratedBlock
	Images []ImageRequest
}

// Generator produces one block per selection, in selection order. A failed
// model call yields a placeholder block, never an error: block generation
// failures are isolated and non-fatal.
type Generator struct {
	inv   Invoker
	store *store.Store
	log   *zap.Logger
}

func NewGenerator(inv Invoker, st *store.Store, log *zap.Logger) *Generator {
	return &Generator{inv: inv, store: st, log: logging.Stage(log, "content")}
}

// Generate renders one selection. Synthesized types never touch the model.
func (g *Generator) Generate(ctx context.Context, preset, query string, sel page.Selection, rctx retrieval.Context, result page.ReasoningResult) Generated {
	spec, ok := Lookup(string(sel.Type))
	if !ok {
		return placeholder(sel.Type)
	}
	if spec.Synthesized {
		switch spec.Type {
		case page.BlockReasoningUser:
			return Generated{Block: SynthesizeReasoning(result)}
		case page.BlockFollowUp:
			return Generated{Block: SynthesizeFollowUp(result)}
		}
	}

	prompt := buildBlockPrompt(spec, query, sel, rctx, g.store)
	res, err := g.inv.Invoke(ctx, preset, llm.RoleContent, llm.Request{
		System: spec.PromptTemplate,
		Prompt: prompt,
	})
	if err != nil {
		g.log.Warn("block generation failed, emitting placeholder",
			zap.String("blockType", string(spec.Type)), zap.Error(err))
		metrics.BlocksGenerated.WithLabelValues(string(spec.Type), "failed").Inc()
		return placeholder(spec.Type)
	}

	markup := Wrap(spec, jsonx.StripFences(res.Text))
	out := Generated{Block: page.GeneratedBlock{
		Type:         spec.Type,
		HTML:         markup,
		SectionStyle: sectionStyle(spec.Type),
	}}
	out = attachImage(out, spec, rctx)
	metrics.BlocksGenerated.WithLabelValues(string(spec.Type), "ok").Inc()
	return out
}

func placeholder(t page.BlockType) Generated {
	return Generated{Block: page.GeneratedBlock{
		Type: t,
		HTML: fmt.Sprintf(`<div class="%s">Content generation failed</div>`, t),
	}}
}

var rootClassRE = regexp.MustCompile(`(?is)\A\s*<\s*[a-z][a-z0-9]*\b[^>]*\bclass\s*=\s*"([^"]*)"`)

// Wrap ensures the markup's root element carries the block's wire class,
// wrapping it when the model omitted or mangled the root.
func Wrap(spec Spec, markup string) string {
	markup = strings.TrimSpace(markup)
	if m := rootClassRE.FindStringSubmatch(markup); m != nil {
		for _, cls := range strings.Fields(m[1]) {
			if cls == spec.WireClassName {
				return markup
			}
		}
	}
	return fmt.Sprintf(`<div class="%s">%s</div>`, spec.WireClassName, markup)
}

func buildBlockPrompt(spec Spec, query string, sel page.Selection, rctx retrieval.Context, st *store.Store) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	if sel.Variant != "" {
		fmt.Fprintf(&b, "Variant: %s\n", sel.Variant)
	}
	if sel.Rationale != "" {
		fmt.Fprintf(&b, "Why this block: %s\n", sel.Rationale)
	}
	if sel.ContentGuidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", sel.ContentGuidance)
	}
	b.WriteString("\n")
	b.WriteString(buildContext(spec, query, rctx, st))
	return b.String()
}

func sectionStyle(t page.BlockType) string {
	switch t {
	case page.BlockHero, page.BlockCTABanner:
		return "accent"
	case page.BlockTestimonials, page.BlockFAQ:
		return "muted"
	default:
		return ""
	}
}

// attachImage embeds a stable image placeholder id on the block root for
// block types with a representative visual, and records the resolution
// request. The image pipeline announces the final URL later via an
// image-ready event carrying the same id.
func attachImage(g Generated, spec Spec, rctx retrieval.Context) Generated {
	var source, alt string
	switch spec.Type {
	case page.BlockHero, page.BlockSpecHighlight, page.BlockCTABanner:
		if p, ok := representativeProduct(rctx); ok && p.ImageURL != store.PlaceholderImage {
			source, alt = p.ImageURL, p.Name
		}
	case page.BlockRecipeCards:
		for _, r := range rctx.RelevantRecipes {
			if r.ImageURL != store.PlaceholderImage {
				source, alt = r.ImageURL, r.Name
				break
			}
		}
	}
	if source == "" {
		return g
	}

	id := "img-" + uuid.NewString()
	g.Block.HTML = injectAttr(g.Block.HTML, "data-image-id", id)
	g.Images = append(g.Images, ImageRequest{ID: id, SourceURL: source, Alt: html.EscapeString(alt)})
	return g
}

var rootTagRE = regexp.MustCompile(`(?is)\A\s*<\s*[a-z][a-z0-9]*`)

// injectAttr inserts an attribute into the root element's opening tag.
func injectAttr(markup, name, value string) string {
	loc := rootTagRE.FindStringIndex(markup)
	if loc == nil {
		return markup
	}
	return markup[:loc[1]] + fmt.Sprintf(` %s=%q`, name, value) + markup[loc[1]:]
}
