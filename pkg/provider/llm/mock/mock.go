// Package mock provides a scriptable test double for the llm.Provider
// interface.
//
// Use Provider in unit tests to verify the prompts the cognitive engine
// composes and to feed controlled frame JSON back without a live backend.
// Responses can be scripted as a queue (Responses) or computed per request
// (CompleteFunc); set Err to inject failures.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []string{`{"internal_reflection":"...","intent":"Guard","dialogue":"Halt.","urgency":0.4,"emotional_state":"Alert"}`},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/duskfolk/duskfolk/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Response selection order: CompleteFunc if set, then the next unconsumed
// entry of Responses, then Response. A zero-value Provider returns an empty
// completion and nil error.
type Provider struct {
	mu sync.Mutex

	// CompleteFunc, if set, computes the response for every call. It takes
	// precedence over Responses and Response.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Responses is a queue of completion contents consumed one per call.
	Responses []string

	// Response is the fallback content returned once Responses is exhausted.
	Response string

	// Err, if non-nil, is returned from every Complete call.
	Err error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	nextResponse int
}

// Complete records the call and returns the next scripted response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if p.CompleteFunc != nil {
		fn := p.CompleteFunc
		p.mu.Unlock()
		resp, err := fn(ctx, req)
		p.mu.Lock()
		return resp, err
	}
	if p.Err != nil {
		return nil, p.Err
	}

	content := p.Response
	if p.nextResponse < len(p.Responses) {
		content = p.Responses[p.nextResponse]
		p.nextResponse++
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// CountTokens returns TokenCount.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TokenCount, nil
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// Reset clears recorded calls and rewinds the response queue.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.nextResponse = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
