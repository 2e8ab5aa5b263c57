package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_NilAdmitsEverything(t *testing.T) {
	var p *pacer
	for i := 0; i < 3; i++ {
		assert.NoError(t, p.Wait(context.Background()))
	}
	assert.Nil(t, newPacer(0))
	assert.Nil(t, newPacer(-1))
}

func TestPacer_SpacesCalls(t *testing.T) {
	p := newPacer(100) // 10ms interval
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPacer_FirstCallIsImmediate(t *testing.T) {
	p := newPacer(1)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacer_CancelWhileWaiting(t *testing.T) {
	p := newPacer(1)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
