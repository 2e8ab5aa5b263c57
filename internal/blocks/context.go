package blocks

import (
	"fmt"
	"sort"
	"strings"

	"pageforge/internal/retrieval"
	"pageforge/internal/store"
)

// buildContext renders the slice of the retrieval bundle a block type
// needs into the prompt context string.
func buildContext(spec Spec, query string, rctx retrieval.Context, st *store.Store) string {
	var b strings.Builder
	for _, kind := range spec.RequiredContextKinds {
		switch kind {
		case CtxProducts:
			writeProducts(&b, rctx.RelevantProducts)
		case CtxSingleProduct:
			if p, ok := representativeProduct(rctx); ok {
				writeProducts(&b, []store.Product{p})
			}
		case CtxRecipes:
			writeRecipes(&b, rctx.RelevantRecipes)
		case CtxUseCases:
			writeUseCases(&b, rctx.RelevantUseCases)
		case CtxFAQs:
			writeFAQs(&b, topFAQs(st, query, 4))
		case CtxTestimonials:
			writeReviews(&b, testimonialReviews(st, rctx, 4))
		case CtxAccessories:
			writeAccessories(&b, relevantAccessories(st, rctx))
		case CtxPersona:
			if rctx.DetectedPersona != nil {
				fmt.Fprintf(&b, "Persona: %s — %s\n",
					rctx.DetectedPersona.Name, rctx.DetectedPersona.Description)
			}
		case CtxQueryOnly:
			// Query is always present in the prompt header.
		}
	}
	return b.String()
}

// representativeProduct picks the single product spec/technical blocks talk
// about: the first retrieved product.
func representativeProduct(rctx retrieval.Context) (store.Product, bool) {
	if len(rctx.RelevantProducts) == 0 {
		return store.Product{}, false
	}
	return rctx.RelevantProducts[0], true
}

// topFAQs scores FAQ records against query words and returns the best n.
func topFAQs(st *store.Store, query string, n int) []store.FAQ {
	q := strings.ToLower(query)
	type scored struct {
		f store.FAQ
		s int
	}
	var ranked []scored
	for _, f := range st.FAQs {
		s := 0
		for _, kw := range f.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				s += 3
			}
		}
		for _, w := range strings.Fields(q) {
			if len(w) >= 4 && strings.Contains(strings.ToLower(f.Question), w) {
				s++
			}
		}
		ranked = append(ranked, scored{f: f, s: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].s > ranked[j].s })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]store.FAQ, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.f)
	}
	return out
}

// testimonialReviews collects curated reviews for the retrieved products.
func testimonialReviews(st *store.Store, rctx retrieval.Context, n int) []store.Review {
	var out []store.Review
	for _, p := range rctx.RelevantProducts {
		out = append(out, st.ReviewsForProduct(p.ID)...)
		if len(out) >= n {
			break
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func relevantAccessories(st *store.Store, rctx retrieval.Context) []store.Accessory {
	seen := map[string]bool{}
	var out []store.Accessory
	for _, p := range rctx.RelevantProducts {
		for _, a := range st.AccessoriesForProduct(p.ID) {
			if !seen[a.ID] {
				seen[a.ID] = true
				out = append(out, a)
			}
		}
	}
	return out
}

func writeProducts(b *strings.Builder, ps []store.Product) {
	if len(ps) == 0 {
		return
	}
	b.WriteString("Products:\n")
	for _, p := range ps {
		fmt.Fprintf(b, "- id=%s model=%s name=%q price=$%.0f features=%s\n  %s\n",
			p.ID, p.ModelNumber, p.Name, p.Price, strings.Join(p.Features, ", "), p.Description)
	}
}

func writeRecipes(b *strings.Builder, rs []store.Recipe) {
	if len(rs) == 0 {
		return
	}
	b.WriteString("Recipes:\n")
	for _, r := range rs {
		fmt.Fprintf(b, "- id=%s name=%q prep=%dmin ingredients=%s\n  %s\n",
			r.ID, r.Name, r.PrepMinutes, strings.Join(r.Ingredients, ", "), r.Description)
	}
}

func writeUseCases(b *strings.Builder, ucs []store.UseCase) {
	if len(ucs) == 0 {
		return
	}
	b.WriteString("Use cases:\n")
	for _, uc := range ucs {
		fmt.Fprintf(b, "- %s: %s\n", uc.Name, uc.Description)
	}
}

func writeFAQs(b *strings.Builder, fs []store.FAQ) {
	if len(fs) == 0 {
		return
	}
	b.WriteString("FAQ entries:\n")
	for _, f := range fs {
		fmt.Fprintf(b, "- Q: %s\n  A: %s\n", f.Question, f.Answer)
	}
}

func writeReviews(b *strings.Builder, rs []store.Review) {
	if len(rs) == 0 {
		return
	}
	b.WriteString("Reviews:\n")
	for _, r := range rs {
		fmt.Fprintf(b, "- %.1f★ %s: %q\n", r.Rating, r.Author, r.Text)
	}
}

func writeAccessories(b *strings.Builder, as []store.Accessory) {
	if len(as) == 0 {
		return
	}
	b.WriteString("Accessories:\n")
	for _, a := range as {
		fmt.Fprintf(b, "- %s ($%.0f): %s\n", a.Name, a.Price, a.Description)
	}
}
