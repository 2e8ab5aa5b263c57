package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"pageforge/internal/intent"
	"pageforge/internal/store"
)

const (
	// MaxProducts and MaxRecipes bound the context bundle.
	MaxProducts = 4
	MaxRecipes  = 6

	// maxPerRecipeGroup caps near-duplicate recipes per subcategory.
	maxPerRecipeGroup = 2
)

// Context is the grounding bundle handed to the reasoning and content
// stages. Built once per run; products and recipes are deduplicated and the
// recipe list is diversity-capped before truncation.
type Context struct {
	RelevantProducts []store.Product
	RelevantRecipes  []store.Recipe
	RelevantUseCases []store.UseCase
	DetectedPersona  *store.Persona
	ContentSummary   string
}

// Builder derives a Context from (query, intent) against the content store.
// Pure and deterministic: same inputs, same bundle.
type Builder struct {
	store *store.Store
}

func NewBuilder(s *store.Store) *Builder {
	return &Builder{store: s}
}

// Known model-number token shapes, e.g. "VX-750" or "gx200".
var modelNumberRE = regexp.MustCompile(`(?i)\b([A-Z]{2})-?(\d{3,4})([A-Z])?\b`)

// ingredientVocabulary is the fixed set of ingredient tokens detected via
// word-boundary matching. Extending it is a data change.
var ingredientVocabulary = []string{
	"banana", "strawberry", "blueberry", "raspberry", "mango", "apple",
	"spinach", "kale", "ginger", "yogurt", "oats", "peanut butter",
	"almond", "tomato", "basil", "squash", "chickpea", "tahini", "lime",
	"lemon", "honey", "protein",
}

// Build runs the full retrieval cascade.
func (b *Builder) Build(query string, cls intent.Classification) Context {
	q := strings.ToLower(strings.TrimSpace(query))

	persona := b.detectPersona(q)
	products := b.selectProducts(q, cls, persona)
	ingredients := DetectIngredients(q)
	recipes := b.selectRecipes(q, cls, ingredients)
	useCases := b.selectUseCases(q, cls)

	ctx := Context{
		RelevantProducts: products,
		RelevantRecipes:  recipes,
		RelevantUseCases: useCases,
		DetectedPersona:  persona,
	}
	ctx.ContentSummary = summarize(ctx, cls)
	return ctx
}

// DetectIngredients matches the fixed vocabulary against the query on word
// boundaries.
func DetectIngredients(q string) []string {
	var out []string
	for _, ing := range ingredientVocabulary {
		pattern := `\b` + regexp.QuoteMeta(ing) + `s?\b`
		if strings.HasSuffix(ing, "y") {
			stem := regexp.QuoteMeta(strings.TrimSuffix(ing, "y"))
			pattern = `\b` + stem + `(?:y|ies)\b`
		}
		if regexp.MustCompile(pattern).MatchString(q) {
			out = append(out, ing)
		}
	}
	return out
}

// selectProducts applies the priority cascade from the design: exact model
// numbers, keyword search, use-case keywords, persona recommendations, then
// store order. Never returns empty while the store has products.
func (b *Builder) selectProducts(q string, cls intent.Classification, persona *store.Persona) []store.Product {
	var picked []store.Product

	// 1. Exact model-number matches win outright.
	for _, m := range modelNumberRE.FindAllString(q, -1) {
		norm := normalizeModelNumber(m)
		if p, ok := b.store.ProductByModelNumber(norm); ok {
			picked = append(picked, p)
		}
	}

	// 2. Free-text keyword search over name/description/features.
	if len(picked) < MaxProducts {
		for _, term := range searchTerms(q, cls) {
			picked = append(picked, b.store.SearchProducts(term)...)
			if len(dedupeProducts(picked)) >= MaxProducts {
				break
			}
		}
	}

	// 3. Use-case keyword table when nothing matched directly.
	if len(dedupeProducts(picked)) == 0 {
		for _, uc := range b.store.UseCases {
			if !useCaseMatches(uc, q, cls) {
				continue
			}
			for _, id := range uc.ProductIDs {
				if p, ok := b.store.ProductByID(id); ok {
					picked = append(picked, p)
				}
			}
		}
	}

	// 4. Persona-linked recommendations top up remaining quota.
	if persona != nil && len(dedupeProducts(picked)) < MaxProducts {
		for _, id := range persona.RecommendedProducts {
			if p, ok := b.store.ProductByID(id); ok {
				picked = append(picked, p)
			}
		}
	}

	picked = dedupeProducts(picked)

	// 5. Final fallback: first products in store order. Never empty.
	if len(picked) == 0 {
		picked = append(picked, b.store.Products...)
		picked = dedupeProducts(picked)
	}

	preferRealImagesProducts(picked)
	if len(picked) > MaxProducts {
		picked = picked[:MaxProducts]
	}
	return picked
}

// selectRecipes scores recipes against detected ingredients and free text,
// with category/use-case and arbitrary fallbacks, then applies the
// diversity cap and image preference before truncation.
func (b *Builder) selectRecipes(q string, cls intent.Classification, ingredients []string) []store.Recipe {
	type scored struct {
		r     store.Recipe
		score int
	}
	var ranked []scored
	for _, r := range b.store.Recipes {
		s := scoreRecipe(r, q, cls, ingredients)
		if s > 0 {
			ranked = append(ranked, scored{r: r, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var picked []store.Recipe
	for _, s := range ranked {
		picked = append(picked, s.r)
	}

	// Category/use-case fallback when scoring found nothing.
	if len(picked) == 0 {
		for _, uc := range b.store.UseCases {
			if !useCaseMatches(uc, q, cls) {
				continue
			}
			for _, id := range uc.RecipeIDs {
				if r, ok := b.store.RecipeByID(id); ok {
					picked = append(picked, r)
				}
			}
		}
	}

	// Arbitrary fallback: store order.
	if len(picked) == 0 {
		picked = append(picked, b.store.Recipes...)
	}

	picked = dedupeRecipes(picked)
	picked = diversityCap(picked, MaxRecipes)
	preferRealImagesRecipes(picked)
	if len(picked) > MaxRecipes {
		picked = picked[:MaxRecipes]
	}
	return picked
}

// scoreRecipe weights: name match 10, ingredient-token match 8, description
// match 5, partial word matches lower.
func scoreRecipe(r store.Recipe, q string, cls intent.Classification, ingredients []string) int {
	score := 0
	name := strings.ToLower(r.Name)
	desc := strings.ToLower(r.Description)

	for _, ing := range ingredients {
		for _, ri := range r.Ingredients {
			if strings.EqualFold(ri, ing) {
				score += 8
			}
		}
	}
	for _, w := range queryWords(q) {
		switch {
		case strings.Contains(name, w):
			score += 10
		case strings.Contains(desc, w):
			score += 5
		default:
			// Partial word matches are weighted lower.
			if len(w) > 4 {
				stem := w[:len(w)-2]
				if strings.Contains(name, stem) {
					score += 2
				} else if strings.Contains(desc, stem) {
					score += 1
				}
			}
		}
	}
	for _, uc := range cls.Entities.UseCases {
		for _, ruc := range r.UseCases {
			if strings.Contains(strings.ToLower(ruc), strings.ToLower(uc)) ||
				strings.Contains(strings.ToLower(uc), strings.ToLower(r.Category)) {
				score += 3
			}
		}
	}
	return score
}

// diversityCap groups by subcategory (or category when unset) and
// round-robins up to maxPerRecipeGroup from each group, preserving score
// order within a group, until the quota is filled.
func diversityCap(recipes []store.Recipe, quota int) []store.Recipe {
	groupKey := func(r store.Recipe) string {
		if r.Subcategory != "" {
			return r.Subcategory
		}
		return r.Category
	}

	groups := map[string][]store.Recipe{}
	var order []string
	for _, r := range recipes {
		k := groupKey(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var out []store.Recipe
	for round := 0; round < maxPerRecipeGroup && len(out) < quota; round++ {
		for _, k := range order {
			if round < len(groups[k]) && len(out) < quota {
				out = append(out, groups[k][round])
			}
		}
	}
	return out
}

func (b *Builder) selectUseCases(q string, cls intent.Classification) []store.UseCase {
	var out []store.UseCase
	for _, uc := range b.store.UseCases {
		if useCaseMatches(uc, q, cls) {
			out = append(out, uc)
		}
	}
	return out
}

func useCaseMatches(uc store.UseCase, q string, cls intent.Classification) bool {
	for _, kw := range uc.Keywords {
		if strings.Contains(q, strings.ToLower(kw)) {
			return true
		}
	}
	for _, e := range cls.Entities.UseCases {
		e = strings.ToLower(e)
		if strings.Contains(strings.ToLower(uc.Name), e) || strings.Contains(strings.ToLower(uc.ID), e) {
			return true
		}
		for _, kw := range uc.Keywords {
			if strings.Contains(e, strings.ToLower(kw)) || strings.Contains(strings.ToLower(kw), e) {
				return true
			}
		}
	}
	return false
}

func (b *Builder) detectPersona(q string) *store.Persona {
	best := -1
	bestHits := 0
	for i, p := range b.store.Personas {
		hits := 0
		for _, sig := range p.Signals {
			if strings.Contains(q, strings.ToLower(sig)) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	p := b.store.Personas[best]
	return &p
}

func normalizeModelNumber(m string) string {
	groups := modelNumberRE.FindStringSubmatch(m)
	if groups == nil {
		return m
	}
	out := strings.ToUpper(groups[1]) + "-" + groups[2]
	if groups[3] != "" {
		out += strings.ToUpper(groups[3])
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "for": true, "and": true, "with": true, "what": true,
	"which": true, "best": true, "a": true, "an": true, "to": true,
	"of": true, "is": true, "my": true, "me": true, "i": true,
}

func queryWords(q string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(q, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func searchTerms(q string, cls intent.Classification) []string {
	terms := queryWords(q)
	terms = append(terms, cls.Entities.Products...)
	terms = append(terms, cls.Entities.Features...)
	return terms
}

func dedupeProducts(in []store.Product) []store.Product {
	seen := map[string]bool{}
	var out []store.Product
	for _, p := range in {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func dedupeRecipes(in []store.Recipe) []store.Recipe {
	seen := map[string]bool{}
	var out []store.Recipe
	for _, r := range in {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// preferRealImages* stably move placeholder-image entries behind entries
// with real photography.
func preferRealImagesProducts(ps []store.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].ImageURL != store.PlaceholderImage && ps[j].ImageURL == store.PlaceholderImage
	})
}

func preferRealImagesRecipes(rs []store.Recipe) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].ImageURL != store.PlaceholderImage && rs[j].ImageURL == store.PlaceholderImage
	})
}

func summarize(ctx Context, cls intent.Classification) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d products", len(ctx.RelevantProducts)))
	parts = append(parts, fmt.Sprintf("%d recipes", len(ctx.RelevantRecipes)))
	if len(ctx.RelevantUseCases) > 0 {
		names := make([]string, 0, len(ctx.RelevantUseCases))
		for _, uc := range ctx.RelevantUseCases {
			names = append(names, uc.Name)
		}
		parts = append(parts, "use cases: "+strings.Join(names, ", "))
	}
	if ctx.DetectedPersona != nil {
		parts = append(parts, "persona: "+ctx.DetectedPersona.Name)
	}
	parts = append(parts, "intent: "+string(cls.IntentType))
	return strings.Join(parts, "; ")
}
