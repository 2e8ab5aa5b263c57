package page

// BlockType identifies one typed unit of generated page content.
type BlockType string

const (
	BlockHero            BlockType = "hero"
	BlockProductCards    BlockType = "product-cards"
	BlockComparisonTable BlockType = "comparison-table"
	BlockRecipeCards     BlockType = "recipe-cards"
	BlockUseCaseCards    BlockType = "use-case-cards"
	BlockSpecHighlight   BlockType = "spec-highlight"
	BlockFAQ             BlockType = "faq"
	BlockTestimonials    BlockType = "testimonials"
	BlockAccessoryShelf  BlockType = "accessory-shelf"
	BlockCTABanner       BlockType = "cta-banner"

	// BlockReasoningUser and BlockFollowUp are synthesized from the
	// reasoning output, never model-selected or model-generated.
	BlockReasoningUser BlockType = "reasoning-user"
	BlockFollowUp      BlockType = "follow-up"
)

// Selection is one block the reasoning engine chose, with its rationale and
// guidance for the content stage.
type Selection struct {
	Type            BlockType `json:"type"`
	Variant         string    `json:"variant,omitempty"`
	Priority        int       `json:"priority"`
	Rationale       string    `json:"rationale"`
	ContentGuidance string    `json:"contentGuidance"`
}

// Trace is the user-facing explanation of the reasoning stage.
type Trace struct {
	IntentAnalysis          string   `json:"intentAnalysis"`
	UserNeedsAssessment     string   `json:"userNeedsAssessment"`
	BlockSelectionRationale []string `json:"blockSelectionRationale"`
	AlternativesConsidered  []string `json:"alternativesConsidered"`
	FinalDecision           string   `json:"finalDecision"`
}

// Journey is the reasoning engine's plan for where the user goes next.
type Journey struct {
	CurrentStage       string   `json:"currentStage"`
	NextBestAction     string   `json:"nextBestAction"`
	SuggestedFollowUps []string `json:"suggestedFollowUps"`
}

// ReasoningResult is the reasoning engine's full output, model-derived or
// static fallback. Immutable once produced.
type ReasoningResult struct {
	SelectedBlocks []Selection `json:"selectedBlocks"`
	Reasoning      Trace       `json:"reasoning"`
	UserJourney    Journey     `json:"userJourney"`
	Confidence     float64     `json:"confidence"`
}

// GeneratedBlock is one rendered block in selection order.
type GeneratedBlock struct {
	Type         BlockType `json:"type"`
	HTML         string    `json:"html"`
	SectionStyle string    `json:"sectionStyle,omitempty"`
}
