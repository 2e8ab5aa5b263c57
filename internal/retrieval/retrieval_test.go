package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageforge/internal/intent"
	"pageforge/internal/store"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	s, err := store.Load()
	require.NoError(t, err)
	return NewBuilder(s)
}

func TestBuild_ModelNumberWinsOutright(t *testing.T) {
	b := newBuilder(t)
	ctx := b.Build("is the vx-750 worth it", intent.Default())

	require.NotEmpty(t, ctx.RelevantProducts)
	assert.Equal(t, "prod-vx750", ctx.RelevantProducts[0].ID)
}

func TestBuild_ModelNumberWithoutDash(t *testing.T) {
	b := newBuilder(t)
	ctx := b.Build("gx200 vs gx100", intent.Default())

	ids := productIDs(ctx.RelevantProducts)
	assert.Contains(t, ids, "prod-gx200")
	assert.Contains(t, ids, "prod-gx100")
}

func TestBuild_NeverReturnsEmptyProducts(t *testing.T) {
	b := newBuilder(t)
	ctx := b.Build("zzzz qqqq completely unrelated", intent.Default())

	assert.NotEmpty(t, ctx.RelevantProducts)
	assert.LessOrEqual(t, len(ctx.RelevantProducts), MaxProducts)
}

func TestBuild_BananaIngredientRanksFirst(t *testing.T) {
	b := newBuilder(t)
	ctx := b.Build("something with banana", intent.Default())

	require.NotEmpty(t, ctx.RelevantRecipes)
	first := ctx.RelevantRecipes[0]
	assert.Contains(t, first.Ingredients, "banana",
		"top recipe should contain the detected ingredient token")
}

func TestBuild_RecipeDiversityCap(t *testing.T) {
	b := newBuilder(t)
	// Broad query so many categories are eligible.
	ctx := b.Build("recipes", intent.Default())

	byGroup := map[string]int{}
	for _, r := range ctx.RelevantRecipes {
		key := r.Subcategory
		if key == "" {
			key = r.Category
		}
		byGroup[key]++
	}
	for group, n := range byGroup {
		assert.LessOrEqual(t, n, 2, "group %s exceeds diversity cap", group)
	}
	assert.LessOrEqual(t, len(ctx.RelevantRecipes), MaxRecipes)
}

func TestBuild_ProductsDeduplicated(t *testing.T) {
	b := newBuilder(t)
	// "smoothie" matches several products by feature and by use case; each
	// product must appear once.
	ctx := b.Build("smoothie smoothie smoothie blender", intent.Classification{
		IntentType:   intent.TypeUseCase,
		Confidence:   0.9,
		Entities:     intent.Entities{UseCases: []string{"smoothies"}},
		JourneyStage: intent.StageExploring,
	})

	seen := map[string]bool{}
	for _, p := range ctx.RelevantProducts {
		assert.False(t, seen[p.ID], "duplicate product %s", p.ID)
		seen[p.ID] = true
	}
}

func TestBuild_PersonaDetected(t *testing.T) {
	b := newBuilder(t)
	ctx := b.Build("quick smoothie for kids before school", intent.Default())

	require.NotNil(t, ctx.DetectedPersona)
	assert.Equal(t, "persona-busy-parent", ctx.DetectedPersona.ID)
	assert.Contains(t, ctx.ContentSummary, "persona: Busy Parent")
}

func TestBuild_RealImagesPreferred(t *testing.T) {
	b := newBuilder(t)
	ctx := b.Build("recipes", intent.Default())

	sawPlaceholder := false
	for _, r := range ctx.RelevantRecipes {
		if r.ImageURL == store.PlaceholderImage {
			sawPlaceholder = true
		} else {
			assert.False(t, sawPlaceholder,
				"recipe with real image appears after a placeholder entry")
		}
	}
}

func TestDetectIngredients_WordBoundary(t *testing.T) {
	got := DetectIngredients("banana bread with oats and honeydew")
	assert.Contains(t, got, "banana")
	assert.Contains(t, got, "oats")
	assert.NotContains(t, got, "honey", "honeydew must not match honey on a word boundary")
}

func TestDetectIngredients_Plural(t *testing.T) {
	got := DetectIngredients("frozen bananas and strawberries")
	assert.Contains(t, got, "banana")
	assert.Contains(t, got, "strawberry")
}

func TestUseCaseKeywordFallback(t *testing.T) {
	b := newBuilder(t)
	// No product keyword matches "juicing" directly except the juicer; the
	// use-case table routes it.
	ctx := b.Build("cold press juice at home", intent.Default())
	assert.Contains(t, productIDs(ctx.RelevantProducts), "prod-jx400")
}

func productIDs(ps []store.Product) string {
	var sb strings.Builder
	for _, p := range ps {
		sb.WriteString(p.ID)
		sb.WriteString(" ")
	}
	return sb.String()
}
