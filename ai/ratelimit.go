package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Generator so calls never exceed rps per second.
// A non-positive rps returns gen unchanged.
func RateLimited(gen Generator, rps float64) Generator {
	if rps <= 0 {
		return gen
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedGenerator{
		next:    gen,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type rateLimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

func (g *rateLimitedGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return g.next.Generate(ctx, prompt, opts)
}
