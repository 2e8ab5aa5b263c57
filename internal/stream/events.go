package stream

import "pageforge/internal/intent"

// Event names on the wire. The stream for one run is strictly ordered:
// generation-start first, reasoning events before any block event, one
// block-content and one block-rationale after each block-start, and a
// terminal generation-complete or error. image-ready events interleave at
// their own pace.
const (
	EventGenerationStart    = "generation-start"
	EventReasoningStart     = "reasoning-start"
	EventReasoningStep      = "reasoning-step"
	EventReasoningComplete  = "reasoning-complete"
	EventBlockStart         = "block-start"
	EventBlockContent       = "block-content"
	EventBlockRationale     = "block-rationale"
	EventImageReady         = "image-ready"
	EventGenerationComplete = "generation-complete"
	EventError              = "error"
)

// Event is one entry of the run's ordered event sequence.
type Event struct {
	Name string
	Data any
}

type GenerationStart struct {
	Query           string `json:"query"`
	EstimatedBlocks int    `json:"estimatedBlocks"`
}

type ReasoningStart struct {
	Model  string `json:"model"`
	Preset string `json:"preset"`
}

type ReasoningStep struct {
	Stage   string `json:"stage"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ReasoningComplete struct {
	Confidence float64 `json:"confidence"`
	DurationMS int64   `json:"duration"`
}

type BlockStart struct {
	BlockType string `json:"blockType"`
	Index     int    `json:"index"`
}

type BlockContent struct {
	HTML         string `json:"html"`
	SectionStyle string `json:"sectionStyle,omitempty"`
}

type BlockRationale struct {
	BlockType string `json:"blockType"`
	Rationale string `json:"rationale"`
}

type ImageReady struct {
	ImageID string `json:"imageId"`
	URL     string `json:"url"`
}

type CompletionReasoning struct {
	JourneyStage       string   `json:"journeyStage"`
	Confidence         float64  `json:"confidence"`
	NextBestAction     string   `json:"nextBestAction"`
	SuggestedFollowUps []string `json:"suggestedFollowUps"`
}

type Recommendations struct {
	Products   []string `json:"products"`
	Recipes    []string `json:"recipes"`
	BlockTypes []string `json:"blockTypes"`
}

type GenerationComplete struct {
	TotalBlocks     int                   `json:"totalBlocks"`
	DurationMS      int64                 `json:"duration"`
	Intent          intent.Classification `json:"intent"`
	Reasoning       CompletionReasoning   `json:"reasoning"`
	Recommendations Recommendations       `json:"recommendations"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
