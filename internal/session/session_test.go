package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageforge/internal/intent"
)

func TestStore_AppendAndHistory(t *testing.T) {
	s := New(16, time.Minute, zap.NewNop())
	ctx := context.Background()

	s.Append(ctx, "sess-1", Entry{Query: "compare blenders", Intent: "comparison"})
	s.Append(ctx, "sess-1", Entry{Query: "vx-750 specs", Intent: "product-detail"})

	got := s.History(ctx, "sess-1")
	require.Len(t, got, 2)
	assert.Equal(t, "compare blenders", got[0].Query)
	assert.Equal(t, "vx-750 specs", got[1].Query)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Empty(t, s.History(ctx, "sess-other"))
}

func TestStore_WindowKeepsNewestTen(t *testing.T) {
	s := New(16, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < MaxEntries+5; i++ {
		s.Append(ctx, "sess-1", Entry{Query: fmt.Sprintf("query %d", i)})
	}

	got := s.History(ctx, "sess-1")
	require.Len(t, got, MaxEntries)
	assert.Equal(t, "query 5", got[0].Query)
	assert.Equal(t, fmt.Sprintf("query %d", MaxEntries+4), got[MaxEntries-1].Query)
}

func TestStore_RedisBackendWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedis(mr.Addr(), time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < MaxEntries+3; i++ {
		s.Append(ctx, "sess-r", Entry{Query: fmt.Sprintf("query %d", i), Intent: "discovery"})
	}

	got := s.History(ctx, "sess-r")
	require.Len(t, got, MaxEntries)
	assert.Equal(t, "query 3", got[0].Query)
	assert.Equal(t, "discovery", got[0].Intent)
}

func TestStore_SetGeneratedPathUpdatesNewestMatch(t *testing.T) {
	s := New(16, time.Minute, zap.NewNop())
	ctx := context.Background()

	s.Append(ctx, "sess-1", Entry{Query: "smoothies", Intent: "use-case"})
	s.Append(ctx, "sess-1", Entry{Query: "compare blenders", Intent: "comparison"})
	s.Append(ctx, "sess-1", Entry{Query: "smoothies", Intent: "use-case"})

	s.SetGeneratedPath(ctx, "sess-1", "smoothies", "/generated/solutions/smoothies-ab12cd34")

	got := s.History(ctx, "sess-1")
	require.Len(t, got, 3)
	assert.Empty(t, got[0].GeneratedPath, "only the newest match is stamped")
	assert.Empty(t, got[1].GeneratedPath)
	assert.Equal(t, "/generated/solutions/smoothies-ab12cd34", got[2].GeneratedPath)

	// Unknown query or session is a no-op.
	s.SetGeneratedPath(ctx, "sess-1", "no such query", "/x")
	s.SetGeneratedPath(ctx, "sess-none", "smoothies", "/x")
	assert.Len(t, s.History(ctx, "sess-1"), 3)
}

func TestStore_SetGeneratedPathRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedis(mr.Addr(), time.Minute, zap.NewNop())
	ctx := context.Background()

	s.Append(ctx, "sess-r", Entry{Query: "smoothies", Intent: "use-case"})
	s.Append(ctx, "sess-r", Entry{Query: "gift ideas", Intent: "gift"})

	s.SetGeneratedPath(ctx, "sess-r", "smoothies", "/generated/solutions/smoothies-ab12cd34")

	got := s.History(ctx, "sess-r")
	require.Len(t, got, 2)
	assert.Equal(t, "/generated/solutions/smoothies-ab12cd34", got[0].GeneratedPath)
	assert.Empty(t, got[1].GeneratedPath)
}

func TestStore_RedisUnavailableYieldsEmptyHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedis(mr.Addr(), time.Minute, zap.NewNop())
	mr.Close()

	assert.Empty(t, s.History(context.Background(), "sess-r"))
}

func TestHistoryItems(t *testing.T) {
	items := HistoryItems([]Entry{
		{Query: "smoothies", Intent: "use-case", Entities: intent.Entities{UseCases: []string{"smoothies"}}},
	})
	require.Len(t, items, 1)
	assert.Equal(t, intent.HistoryItem{Query: "smoothies", IntentType: "use-case"}, items[0])
}

func TestParseClientContext(t *testing.T) {
	cc := ParseClientContext(`{"previousQueries":["a","b"]}`)
	assert.Equal(t, []string{"a", "b"}, cc.PreviousQueries)
	assert.Empty(t, ParseClientContext("").PreviousQueries)
	assert.Empty(t, ParseClientContext("{not json").PreviousQueries)
}
