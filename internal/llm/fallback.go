package llm

import (
	"context"
	"errors"
	"fmt"
)

// FallbackProvider chains a primary provider with a lighter fallback
// model. When the primary chain (usually retry-wrapped) exhausts itself
// on a retryable error, the fallback chain runs once. Non-retryable
// failures and caller cancellation skip the fallback: a request the
// primary model rejected outright will not fare better elsewhere.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
}

// WithFallback wraps primary with a secondary provider tried after the
// primary's retry budget is exhausted.
func WithFallback(primary, fallback Provider) Provider {
	return &FallbackProvider{primary: primary, fallback: fallback}
}

func (f *FallbackProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := f.primary.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if !retryable(err) {
		return nil, err
	}

	resp, fbErr := f.fallback.Generate(ctx, req)
	if fbErr != nil {
		// Surface the primary failure; the fallback result is secondary.
		return nil, fmt.Errorf("fallback %s also failed (%v): %w", f.fallback.ModelID(), fbErr, err)
	}
	return resp, nil
}

// ModelID reports the primary model; the fallback only serves overflow.
func (f *FallbackProvider) ModelID() string {
	return f.primary.ModelID()
}
