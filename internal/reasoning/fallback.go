package reasoning

import (
	"pageforge/internal/intent"
	"pageforge/internal/page"
)

// fallbackBlockLists maps intent types to a static ordered block mix used
// whenever the model's reasoning cannot be parsed. Follow-up is appended by
// normalization.
var fallbackBlockLists = map[intent.Type][]page.BlockType{
	intent.TypeDiscovery:     {page.BlockHero, page.BlockUseCaseCards, page.BlockProductCards},
	intent.TypeComparison:    {page.BlockHero, page.BlockComparisonTable, page.BlockTestimonials},
	intent.TypeUseCase:       {page.BlockHero, page.BlockUseCaseCards, page.BlockRecipeCards, page.BlockProductCards},
	intent.TypeProductDetail: {page.BlockHero, page.BlockSpecHighlight, page.BlockTestimonials, page.BlockAccessoryShelf},
	intent.TypePurchase:      {page.BlockHero, page.BlockProductCards, page.BlockFAQ, page.BlockCTABanner},
	intent.TypeSupport:       {page.BlockHero, page.BlockFAQ},
	intent.TypeGift:          {page.BlockHero, page.BlockProductCards, page.BlockAccessoryShelf, page.BlockCTABanner},
	intent.TypeMedical:       {page.BlockHero, page.BlockUseCaseCards, page.BlockFAQ},
	intent.TypeAccessibility: {page.BlockHero, page.BlockSpecHighlight, page.BlockFAQ},
	intent.TypePartnership:   {page.BlockHero, page.BlockFAQ, page.BlockCTABanner},
}

func stageFor(t intent.JourneyStage) string {
	switch t {
	case intent.StageComparing:
		return string(intent.StageComparing)
	case intent.StageDeciding:
		return string(intent.StageDeciding)
	default:
		return string(intent.StageExploring)
	}
}

// Fallback builds the static reasoning result for an intent. The caller
// still runs Normalize over it.
func Fallback(cls intent.Classification) page.ReasoningResult {
	types, ok := fallbackBlockLists[cls.IntentType]
	if !ok {
		types = fallbackBlockLists[intent.TypeDiscovery]
	}

	sels := make([]page.Selection, 0, len(types))
	rationales := make([]string, 0, len(types))
	for i, t := range types {
		rationale := "A " + string(t) + " section fits this kind of question."
		sels = append(sels, page.Selection{
			Type:            t,
			Priority:        i + 1,
			Rationale:       rationale,
			ContentGuidance: "Keep it concrete and grounded in the retrieved items.",
		})
		rationales = append(rationales, rationale)
	}

	return page.ReasoningResult{
		SelectedBlocks: sels,
		Reasoning: page.Trace{
			IntentAnalysis:          "The query reads as a " + string(cls.IntentType) + " request.",
			UserNeedsAssessment:     "Showing a proven layout for this intent while detailed reasoning is unavailable.",
			BlockSelectionRationale: rationales,
			AlternativesConsidered:  []string{"A bespoke block mix from the reasoning model."},
			FinalDecision:           "Use the standard " + string(cls.IntentType) + " page layout.",
		},
		UserJourney: page.Journey{
			CurrentStage:       stageFor(cls.JourneyStage),
			NextBestAction:     "Explore the suggested products below.",
			SuggestedFollowUps: []string{"Compare the top picks", "See what owners say", "Check warranty coverage"},
		},
		Confidence: 0.4,
	}
}
