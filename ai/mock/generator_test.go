package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/docent/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerator_ScriptThenDefaults(t *testing.T) {
	gen := NewMockGenerator()
	boom := errors.New("boom")
	gen.Enqueue("first").EnqueueError(boom)

	ctx := context.Background()
	out, err := gen.Generate(ctx, "anything", ai.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	_, err = gen.Generate(ctx, "anything", ai.GenerateOptions{})
	assert.ErrorIs(t, err, boom)

	out, err = gen.Generate(ctx, "Classify the topics of this text", ai.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopicsResponse, out)

	out, err = gen.Generate(ctx, "Summarize this", ai.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSummaryResponse, out)

	assert.Equal(t, 4, gen.CallCount())
	assert.Len(t, gen.Prompts(), 4)
	assert.Zero(t, gen.Remaining())
}

func TestMockGenerator_GenerateFunc(t *testing.T) {
	gen := NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
		return "custom:" + prompt, nil
	}

	out, err := gen.Generate(context.Background(), "x", ai.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "custom:x", out)

	gen.Reset()
	assert.Zero(t, gen.CallCount())
	assert.Nil(t, gen.GenerateFunc)
}

func TestMockGenerator_Concurrent(t *testing.T) {
	gen := NewMockGenerator()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = gen.Generate(context.Background(), "p", ai.GenerateOptions{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, gen.CallCount())
}

func TestMockGenerator_CancelledContext(t *testing.T) {
	gen := NewMockGenerator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, "p", ai.GenerateOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gen.CallCount())
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider()
	require.NotNil(t, provider.Generator())
	assert.NoError(t, provider.Close())

	gen := NewMockGenerator()
	custom := NewMockProviderWithGenerator(gen)
	assert.Same(t, gen, custom.(*MockProvider).GetMockGenerator())
}
