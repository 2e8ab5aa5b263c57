package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pageforge/internal/metrics"
)

// TokenSource hands out a currently-valid bearer token and accepts
// invalidation when a consumer observes the token being rejected.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticTokenSource wraps a long-lived token issued out of band. Invalidate
// is a no-op; there is nothing to refresh.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("publish: no static token configured")
	}
	return s.token, nil
}

func (s *StaticTokenSource) Invalidate() {}

// DefaultFreshness reuses a 24h-lived token for 23h so a token is never
// presented within the last hour of its life.
const DefaultFreshness = 23 * time.Hour

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// CachedTokenSource exchanges service client credentials for a short-lived
// bearer token and caches it for the freshness window. Refresh is
// serialized; callers racing after an Invalidate each re-check the cache
// under the lock, so both converge on the same fresh token.
type CachedTokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	freshness    time.Duration
	httpClient   *http.Client
	now          func() time.Time

	mu         sync.Mutex
	token      string
	acquiredAt time.Time
}

func NewCachedTokenSource(tokenURL, clientID, clientSecret string, freshness time.Duration, httpClient *http.Client) *CachedTokenSource {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &CachedTokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		freshness:    freshness,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

func (c *CachedTokenSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Sub(c.acquiredAt) < c.freshness {
		return c.token, nil
	}

	token, err := c.exchange(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.acquiredAt = c.now()
	metrics.TokenRefreshes.Inc()
	return token, nil
}

func (c *CachedTokenSource) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.acquiredAt = time.Time{}
	c.mu.Unlock()
}

func (c *CachedTokenSource) exchange(ctx context.Context) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned an empty access token")
	}
	return tr.AccessToken, nil
}
