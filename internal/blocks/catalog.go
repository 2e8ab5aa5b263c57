package blocks

import (
	"strings"

	"pageforge/internal/page"
)

// ContextKind names a slice of the retrieval bundle a block's prompt needs.
type ContextKind string

const (
	CtxProducts      ContextKind = "products"
	CtxSingleProduct ContextKind = "single-product"
	CtxRecipes       ContextKind = "recipes"
	CtxUseCases      ContextKind = "use-cases"
	CtxFAQs          ContextKind = "faqs"
	CtxTestimonials  ContextKind = "testimonials"
	CtxAccessories   ContextKind = "accessories"
	CtxPersona       ContextKind = "persona"
	CtxQueryOnly     ContextKind = "query-only"
)

// Spec describes one block type: the context it needs, the structural
// template appended to its prompt, and the class its root element must
// carry on the wire. Adding a block type is a data addition here, not a
// control-flow change.
type Spec struct {
	Type                 page.BlockType
	RequiredContextKinds []ContextKind
	PromptTemplate       string
	WireClassName        string
	Synthesized          bool
}

// Copy rules shared by every generated block.
const sharedCopyRules = `Copy rules:
- CTA text must be value-driven ("Start blending tonight"), never generic ("Learn More").
- Plain confident product copy; no superlatives you cannot back with a listed feature.
- Return ONLY the HTML for this one block, no markdown fences, no commentary.`

var catalog = map[page.BlockType]Spec{
	page.BlockHero: {
		Type:                 page.BlockHero,
		RequiredContextKinds: []ContextKind{CtxSingleProduct, CtxPersona, CtxQueryOnly},
		WireClassName:        "hero",
		PromptTemplate: `Produce a hero section: <div class="hero"> containing an <h1>
headline answering the query, a one-sentence subhead, and one CTA
<a class="cta">. ` + sharedCopyRules,
	},
	page.BlockProductCards: {
		Type:                 page.BlockProductCards,
		RequiredContextKinds: []ContextKind{CtxProducts},
		WireClassName:        "product-cards",
		PromptTemplate: `Produce <div class="product-cards"> with one <article class="product-card">
per product: name, one-line benefit tied to the query, price, and a CTA link.
Use data-product-id attributes. ` + sharedCopyRules,
	},
	page.BlockComparisonTable: {
		Type:                 page.BlockComparisonTable,
		RequiredContextKinds: []ContextKind{CtxProducts},
		WireClassName:        "comparison-table",
		PromptTemplate: `Produce <div class="comparison-table"> wrapping a <table> comparing the
products row-by-row on the features that matter for the query. End with a
one-sentence recommendation. ` + sharedCopyRules,
	},
	page.BlockRecipeCards: {
		Type:                 page.BlockRecipeCards,
		RequiredContextKinds: []ContextKind{CtxRecipes},
		WireClassName:        "recipe-cards",
		PromptTemplate: `Produce <div class="recipe-cards"> with one <article class="recipe-card">
per recipe: name, prep time, and a one-line hook. Use data-recipe-id
attributes. ` + sharedCopyRules,
	},
	page.BlockUseCaseCards: {
		Type:                 page.BlockUseCaseCards,
		RequiredContextKinds: []ContextKind{CtxUseCases},
		WireClassName:        "use-case-cards",
		PromptTemplate: `Produce <div class="use-case-cards"> with one <article> per use case
linking the scenario to the products that serve it. ` + sharedCopyRules,
	},
	page.BlockSpecHighlight: {
		Type:                 page.BlockSpecHighlight,
		RequiredContextKinds: []ContextKind{CtxSingleProduct},
		WireClassName:        "spec-highlight",
		PromptTemplate: `Produce <div class="spec-highlight"> for the single representative
product: a <dl> of its technical specs and a short paragraph on who it is
for. ` + sharedCopyRules,
	},
	page.BlockFAQ: {
		Type:                 page.BlockFAQ,
		RequiredContextKinds: []ContextKind{CtxFAQs},
		WireClassName:        "faq",
		PromptTemplate: `Produce <div class="faq"> with a <details>/<summary> pair per question.
Answer in the brand's voice using only the provided answers. ` + sharedCopyRules,
	},
	page.BlockTestimonials: {
		Type:                 page.BlockTestimonials,
		RequiredContextKinds: []ContextKind{CtxTestimonials},
		WireClassName:        "testimonials",
		PromptTemplate: `Produce <div class="testimonials"> with one <blockquote> per review,
attributed, with the star rating as text. Quote the reviews verbatim. ` + sharedCopyRules,
	},
	page.BlockAccessoryShelf: {
		Type:                 page.BlockAccessoryShelf,
		RequiredContextKinds: []ContextKind{CtxAccessories},
		WireClassName:        "accessory-shelf",
		PromptTemplate: `Produce <div class="accessory-shelf"> cross-selling the accessories:
name, price, and which product they extend. ` + sharedCopyRules,
	},
	page.BlockCTABanner: {
		Type:                 page.BlockCTABanner,
		RequiredContextKinds: []ContextKind{CtxSingleProduct, CtxQueryOnly},
		WireClassName:        "cta-banner",
		PromptTemplate: `Produce <div class="cta-banner">: one strong closing line and a CTA
button for the representative product. ` + sharedCopyRules,
	},
	page.BlockReasoningUser: {
		Type:          page.BlockReasoningUser,
		WireClassName: "reasoning-user",
		Synthesized:   true,
	},
	page.BlockFollowUp: {
		Type:          page.BlockFollowUp,
		WireClassName: "follow-up",
		Synthesized:   true,
	},
}

// typeAliases maps names models commonly emit to canonical block types.
var typeAliases = map[string]page.BlockType{
	"product-grid":    page.BlockProductCards,
	"products":        page.BlockProductCards,
	"product-list":    page.BlockProductCards,
	"comparison":      page.BlockComparisonTable,
	"compare-table":   page.BlockComparisonTable,
	"recipes":         page.BlockRecipeCards,
	"recipe-grid":     page.BlockRecipeCards,
	"use-cases":       page.BlockUseCaseCards,
	"usecase-cards":   page.BlockUseCaseCards,
	"specs":           page.BlockSpecHighlight,
	"spec-table":      page.BlockSpecHighlight,
	"faqs":            page.BlockFAQ,
	"questions":       page.BlockFAQ,
	"reviews":         page.BlockTestimonials,
	"social-proof":    page.BlockTestimonials,
	"accessories":     page.BlockAccessoryShelf,
	"cta":             page.BlockCTABanner,
	"call-to-action":  page.BlockCTABanner,
	"banner":          page.BlockHero,
	"header":          page.BlockHero,
	"followup":        page.BlockFollowUp,
	"follow-ups":      page.BlockFollowUp,
	"next-steps":      page.BlockFollowUp,
	"reasoning":       page.BlockReasoningUser,
	"reasoning-trace": page.BlockReasoningUser,
	"explanation":     page.BlockReasoningUser,
}

// Lookup resolves a block type name, applying aliases. ok is false for
// names outside the catalog.
func Lookup(name string) (Spec, bool) {
	t := page.BlockType(strings.ToLower(strings.TrimSpace(name)))
	if alias, ok := typeAliases[string(t)]; ok {
		t = alias
	}
	spec, ok := catalog[t]
	return spec, ok
}

// Canonical resolves a name to its canonical block type, defaulting to the
// input when unknown.
func Canonical(name string) page.BlockType {
	if spec, ok := Lookup(name); ok {
		return spec.Type
	}
	return page.BlockType(strings.ToLower(strings.TrimSpace(name)))
}

// IsSynthesized reports whether the type is produced locally from the
// reasoning output rather than by a model call.
func IsSynthesized(t page.BlockType) bool {
	spec, ok := catalog[t]
	return ok && spec.Synthesized
}

// SelectableTypes lists the model-selectable block types for the reasoning
// prompt, in a stable order.
func SelectableTypes() []page.BlockType {
	return []page.BlockType{
		page.BlockHero, page.BlockProductCards, page.BlockComparisonTable,
		page.BlockRecipeCards, page.BlockUseCaseCards, page.BlockSpecHighlight,
		page.BlockFAQ, page.BlockTestimonials, page.BlockAccessoryShelf,
		page.BlockCTABanner,
	}
}
