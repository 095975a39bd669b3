package resilience

import (
	"context"

	"github.com/duskfolk/duskfolk/pkg/provider/llm"
)

// BreakerProvider wraps a single [llm.Provider] behind a [CircuitBreaker].
// When the breaker is open, Complete fails fast with [ErrCircuitOpen] so the
// cognitive engine can hand the agent a fallback frame without burning its
// call deadline against a dead backend.
type BreakerProvider struct {
	inner   llm.Provider
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ llm.Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps provider with a breaker built from cfg.
func NewBreakerProvider(provider llm.Provider, cfg CircuitBreakerConfig) *BreakerProvider {
	return &BreakerProvider{
		inner:   provider,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Complete forwards the request through the breaker.
func (b *BreakerProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := b.breaker.Execute(func() error {
		var innerErr error
		resp, innerErr = b.inner.Complete(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CountTokens delegates directly; counting is local and cannot trip the breaker.
func (b *BreakerProvider) CountTokens(messages []llm.Message) (int, error) {
	return b.inner.CountTokens(messages)
}

// Capabilities delegates directly.
func (b *BreakerProvider) Capabilities() llm.ModelCapabilities {
	return b.inner.Capabilities()
}

// BreakerState reports the current breaker state for health reporting.
func (b *BreakerProvider) BreakerState() State {
	return b.breaker.State()
}
