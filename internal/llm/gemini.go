package llm

import (
	"context"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
	pace  *pacer
}

// GeminiOptions tune a single client instance.
type GeminiOptions struct {
	APIKey string
	Model  string
	RPS    float64
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		cli:   cli,
		model: opts.Model,
		pace:  newPacer(opts.RPS),
	}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

func (g *GeminiClient) Close() error { return nil }

// Generate sends the request and returns the first candidate's text.
// Transient failures are retried up to three times with exponential backoff;
// each attempt takes its own pacing slot.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (Result, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := g.pace.Wait(ctx); err != nil {
			return Result{}, err
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
			cfg,
		)
		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
			len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrEmptyResponse
		} else {
			res := Result{
				Text:     resp.Candidates[0].Content.Parts[0].Text,
				Duration: time.Since(start),
				Model:    g.model,
			}
			if um := resp.UsageMetadata; um != nil {
				res.Usage = Usage{
					PromptTokens:     int(um.PromptTokenCount),
					CompletionTokens: int(um.CandidatesTokenCount),
					TotalTokens:      int(um.TotalTokenCount),
				}
			}
			return res, nil
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return Result{}, lastErr
}
