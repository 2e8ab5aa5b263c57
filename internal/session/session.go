package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pageforge/internal/intent"
)

// MaxEntries bounds the rolling window kept per session.
const MaxEntries = 10

const (
	defaultSessions = 4096
	defaultTTL      = 24 * time.Hour
	redisKeyPrefix  = "pageforge:session:"
)

// Entry records one completed run for a session.
type Entry struct {
	Query         string          `json:"query"`
	Timestamp     time.Time       `json:"timestamp"`
	Intent        string          `json:"intent"`
	Entities      intent.Entities `json:"entities"`
	GeneratedPath string          `json:"generatedPath,omitempty"`
}

// Store keeps per-session history in a Redis list when an address is
// configured, otherwise in an in-process expiring LRU. All methods are
// best-effort: a backend hiccup yields empty history, never an error.
type Store struct {
	cache *expirable.LRU[string, []Entry]
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func New(maxSessions int, ttl time.Duration, log *zap.Logger) *Store {
	if maxSessions <= 0 {
		maxSessions = defaultSessions
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		cache: expirable.NewLRU[string, []Entry](maxSessions, nil, ttl),
		ttl:   ttl,
		log:   log,
	}
}

func NewRedis(addr string, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
		log: log,
	}
}

// NewFor picks the Redis backend when addr is non-empty, otherwise the
// in-process LRU.
func NewFor(addr string, log *zap.Logger) *Store {
	if strings.TrimSpace(addr) == "" {
		return New(defaultSessions, defaultTTL, log)
	}
	return NewRedis(addr, defaultTTL, log)
}

// History returns the session's entries, oldest first.
func (s *Store) History(ctx context.Context, sessionID string) []Entry {
	if s == nil || sessionID == "" {
		return nil
	}
	if s.rdb != nil {
		return s.historyRedis(ctx, sessionID)
	}
	entries, _ := s.cache.Get(sessionID)
	return entries
}

// Append records one run and trims the window to the newest MaxEntries.
func (s *Store) Append(ctx context.Context, sessionID string, e Entry) {
	if s == nil || sessionID == "" {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if s.rdb != nil {
		s.appendRedis(ctx, sessionID, e)
		return
	}
	entries, _ := s.cache.Get(sessionID)
	entries = append(entries, e)
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}
	s.cache.Add(sessionID, entries)
}

// SetGeneratedPath stamps the published path onto the newest entry matching
// query, once persistence has decided where the page lives.
func (s *Store) SetGeneratedPath(ctx context.Context, sessionID, query, path string) {
	if s == nil || sessionID == "" || path == "" {
		return
	}
	if s.rdb != nil {
		s.setPathRedis(ctx, sessionID, query, path)
		return
	}
	entries, ok := s.cache.Get(sessionID)
	if !ok {
		return
	}
	out := append([]Entry(nil), entries...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Query == query {
			out[i].GeneratedPath = path
			s.cache.Add(sessionID, out)
			return
		}
	}
}

func (s *Store) setPathRedis(ctx context.Context, sessionID, query, path string) {
	key := redisKeyPrefix + sessionID
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		s.log.Warn("session path update failed", zap.Error(err))
		return
	}
	for i := len(raw) - 1; i >= 0; i-- {
		var e Entry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil || e.Query != query {
			continue
		}
		e.GeneratedPath = path
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		if err := s.rdb.LSet(ctx, key, int64(i), data).Err(); err != nil {
			s.log.Warn("session path update failed", zap.Error(err))
		}
		return
	}
}

func (s *Store) historyRedis(ctx context.Context, sessionID string) []Entry {
	raw, err := s.rdb.LRange(ctx, redisKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		s.log.Warn("session history read failed", zap.Error(err))
		return nil
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *Store) appendRedis(ctx context.Context, sessionID string, e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	key := redisKeyPrefix + sessionID
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -MaxEntries, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("session append failed", zap.Error(err))
	}
}

// HistoryItems projects entries into the shape the classifier consumes.
func HistoryItems(entries []Entry) []intent.HistoryItem {
	items := make([]intent.HistoryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, intent.HistoryItem{Query: e.Query, IntentType: e.Intent})
	}
	return items
}

// ClientContext is the browser-supplied hint carried in the ctx URL
// parameter. It supplements, never replaces, server-side history.
type ClientContext struct {
	PreviousQueries []string `json:"previousQueries"`
}

// ParseClientContext decodes the ctx parameter. Malformed input yields an
// empty context.
func ParseClientContext(raw string) ClientContext {
	var cc ClientContext
	if raw == "" {
		return cc
	}
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		return ClientContext{}
	}
	return cc
}
