package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/docent/core"
)

// CallWithTimeout runs fn under a derived deadline and maps its failure
// into the provider error taxonomy.
func CallWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := fn(callCtx)
	if err == nil {
		return out, nil
	}

	// The caller gave up; not a provider fault
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s: %w", core.ErrProviderTimeout, timeout, err)
	}
	return "", fmt.Errorf("%w: %w", core.ErrProvider, err)
}
