package llm

import (
	"context"
	"errors"
	"time"
)

// Role names the pipeline stage a model invocation serves. Presets map roles
// to concrete provider/model parameters so stages never hard-code a vendor.
type Role string

const (
	RoleClassification Role = "classification"
	RoleReasoning      Role = "reasoning"
	RoleContent        Role = "content"
	RoleValidation     Role = "validation"
)

var ErrEmptyResponse = errors.New("llm: empty response from model")

// Usage reports token accounting for one invocation when the provider
// supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the raw outcome of one model invocation: untyped text plus
// usage and timing. Interpretation of the text is the caller's concern.
type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
	Model    string
}

// Request carries the prompt pair and per-call parameter overrides.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Client is a text-in/text-out model invocation capability.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
	Close() error
}
