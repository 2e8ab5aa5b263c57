package publish

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"pageforge/internal/intent"
	"pageforge/internal/jsonx"
	"pageforge/internal/logging"
	"pageforge/internal/metrics"
)

// Block is one rendered page section as received from the client.
type Block struct {
	HTML         string `json:"html"`
	SectionStyle string `json:"sectionStyle,omitempty"`
}

// Request is the payload of a persist call.
type Request struct {
	Query  string                `json:"query"`
	Title  string                `json:"title,omitempty"`
	Intent intent.Classification `json:"intent,omitempty"`
	Blocks []Block               `json:"blocks"`
}

// Result reports where the page ended up.
type Result struct {
	Path       string `json:"path"`
	PreviewURL string `json:"previewURL"`
	LiveURL    string `json:"liveURL"`
}

const (
	defaultPollInterval = time.Second
	defaultPollAttempts = 15
)

var externalAssetRE = regexp.MustCompile(`src="(https?://[^"]+)"`)

// Client drives the remote content backend through the publish sequence:
// upload externally-referenced assets, create the page resource, request a
// preview build, poll for preview availability, publish, purge cache.
// Create and publish failures abort; asset, preview and purge failures are
// logged and the sequence continues.
type Client struct {
	baseURL      string
	siteSection  string
	httpClient   *http.Client
	tokens       TokenSource
	log          *zap.Logger
	pollInterval time.Duration
	pollAttempts int
}

func NewClient(baseURL, siteSection string, tokens TokenSource, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		siteSection:  siteSection,
		httpClient:   httpClient,
		tokens:       tokens,
		log:          logging.Stage(log, "publish"),
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
}

// SetPolling overrides the preview poll cadence. Zero values keep defaults.
func (c *Client) SetPolling(interval time.Duration, attempts int) {
	if interval > 0 {
		c.pollInterval = interval
	}
	if attempts > 0 {
		c.pollAttempts = attempts
	}
}

// Persist runs the full sequence and returns the published page location.
func (c *Client) Persist(ctx context.Context, req Request) (Result, error) {
	if len(req.Blocks) == 0 {
		return Result{}, fmt.Errorf("publish: no blocks to persist")
	}
	path := DerivePath(c.siteSection, req.Query, req.Intent.IntentType, req.Blocks)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.Query
	}

	c.uploadAssets(ctx, req.Blocks)

	if err := c.createPage(ctx, path, title, req); err != nil {
		metrics.PublishOutcomes.WithLabelValues("create_failed").Inc()
		return Result{}, fmt.Errorf("create page: %w", err)
	}

	if err := c.requestPreview(ctx, path); err != nil {
		c.log.Warn("preview request failed, continuing", zap.String("path", path), zap.Error(err))
	} else if !c.pollPreview(ctx, path) {
		c.log.Warn("preview did not become available within the poll window, continuing",
			zap.String("path", path),
			zap.Int("attempts", c.pollAttempts))
	}

	urls, err := c.publishPage(ctx, path)
	if err != nil {
		metrics.PublishOutcomes.WithLabelValues("publish_failed").Inc()
		return Result{}, fmt.Errorf("publish page: %w", err)
	}

	if err := c.purgeCache(ctx, path); err != nil {
		c.log.Warn("cache purge failed, continuing", zap.String("path", path), zap.Error(err))
	}

	metrics.PublishOutcomes.WithLabelValues("ok").Inc()
	return Result{Path: path, PreviewURL: urls.Preview, LiveURL: urls.Live}, nil
}

func (c *Client) uploadAssets(ctx context.Context, blocks []Block) {
	seen := map[string]bool{}
	for _, b := range blocks {
		for _, m := range externalAssetRE.FindAllStringSubmatch(b.HTML, -1) {
			src := m[1]
			if seen[src] || strings.HasPrefix(src, c.baseURL) {
				continue
			}
			seen[src] = true
			if _, err := c.do(ctx, http.MethodPost, "/api/assets", map[string]string{"url": src}); err != nil {
				c.log.Warn("asset upload failed, continuing", zap.String("url", src), zap.Error(err))
			}
		}
	}
}

func (c *Client) createPage(ctx context.Context, path, title string, req Request) error {
	payload := map[string]any{
		"path":   path,
		"title":  title,
		"query":  req.Query,
		"intent": req.Intent,
		"html":   AssemblePage(title, req.Blocks),
	}
	_, err := c.do(ctx, http.MethodPut, "/api/pages", payload)
	return err
}

func (c *Client) requestPreview(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/pages/preview", map[string]string{"path": path})
	return err
}

func (c *Client) pollPreview(ctx context.Context, path string) bool {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		body, err := c.do(ctx, http.MethodGet, "/api/pages/preview/status?path="+url.QueryEscape(path), nil)
		if err == nil {
			var status struct {
				Ready bool `json:"ready"`
			}
			if jsonErr := jsonx.Unmarshal(string(body), &status); jsonErr == nil && status.Ready {
				return true
			}
		}
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

type publishURLs struct {
	Preview string `json:"preview"`
	Live    string `json:"live"`
}

func (c *Client) publishPage(ctx context.Context, path string) (publishURLs, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/pages/publish", map[string]string{"path": path})
	if err != nil {
		return publishURLs{}, err
	}
	var resp struct {
		URLs publishURLs `json:"urls"`
	}
	if err := jsonx.Unmarshal(string(body), &resp); err == nil && resp.URLs.Live != "" {
		return resp.URLs, nil
	}
	return publishURLs{
		Preview: c.baseURL + "/preview" + path,
		Live:    c.baseURL + path,
	}, nil
}

func (c *Client) purgeCache(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/cache/purge", map[string]string{"path": path})
	return err
}

// do issues one authenticated call. An unauthorized response invalidates
// the cached token and the call is retried exactly once with a fresh
// token; a second unauthorized response is fatal for the operation.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire token: %w", err)
		}

		var body io.Reader
		if payload != nil {
			data, err := jsonx.MarshalNoEscape(payload)
			if err != nil {
				return nil, fmt.Errorf("encode payload: %w", err)
			}
			body = bytes.NewReader(data)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("%s %s: unauthorized after token refresh", method, endpoint)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return respBody, nil
	}
	return nil, fmt.Errorf("%s %s: unauthorized", method, endpoint)
}

// AssemblePage wraps blocks into the page document the content backend
// stores verbatim.
func AssemblePage(title string, blocks []Block) string {
	var sb strings.Builder
	sb.WriteString(`<main class="generated-page" data-title="` + html.EscapeString(title) + "\">\n")
	for _, b := range blocks {
		class := "section"
		if b.SectionStyle != "" {
			class += " section--" + b.SectionStyle
		}
		sb.WriteString(`<section class="` + class + `">` + "\n")
		sb.WriteString(b.HTML)
		sb.WriteString("\n</section>\n")
	}
	sb.WriteString("</main>")
	return sb.String()
}
