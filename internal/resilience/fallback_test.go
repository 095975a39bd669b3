package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duskfolk/duskfolk/pkg/provider/llm"
	llmmock "github.com/duskfolk/duskfolk/pkg/provider/llm/mock"
)

const guardFrame = `{"intent":"Guard","dialogue":"Halt. State your business.","urgency":0.4}`

func newBackendChain(primary, secondary llm.Provider, maxFailures int) *FallbackGroup[llm.Provider] {
	fg := NewFallbackGroup(primary, "openai-primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  maxFailures,
			ResetTimeout: time.Hour,
		},
	})
	fg.AddFallback("ollama-local", secondary)
	return fg
}

func complete(fg *FallbackGroup[llm.Provider]) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(fg, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(context.Background(), llm.CompletionRequest{})
	})
}

func TestFallbackGroupPrimaryAnswers(t *testing.T) {
	primary := &llmmock.Provider{Response: guardFrame}
	secondary := &llmmock.Provider{Response: "should never be asked"}
	fg := newBackendChain(primary, secondary, 3)

	resp, err := complete(fg)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != guardFrame {
		t.Errorf("content = %q, want the primary's frame", resp.Content)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Errorf("secondary saw %d calls, want 0 while the primary is healthy", n)
	}
}

func TestFallbackGroupDeadPrimaryFallsThrough(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackendDown}
	secondary := &llmmock.Provider{Response: guardFrame}
	fg := newBackendChain(primary, secondary, 3)

	resp, err := complete(fg)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != guardFrame {
		t.Errorf("content = %q, want the fallback's frame", resp.Content)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary saw %d calls, want 1 before falling through", n)
	}
}

func TestFallbackGroupAllBackendsDown(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackendDown}
	secondary := &llmmock.Provider{Err: errors.New("model not loaded")}
	fg := newBackendChain(primary, secondary, 3)

	_, err := complete(fg)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsTrippedBackend(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackendDown}
	secondary := &llmmock.Provider{Response: guardFrame}
	fg := newBackendChain(primary, secondary, 2)

	// Two failed calls trip the primary's breaker; from then on the chain
	// must not burn latency on it.
	for i := 0; i < 4; i++ {
		if _, err := complete(fg); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if n := len(primary.Calls()); n != 2 {
		t.Errorf("primary saw %d calls, want 2 (breaker skips the rest)", n)
	}
	if n := len(secondary.Calls()); n != 4 {
		t.Errorf("secondary saw %d calls, want 4", n)
	}
}

func TestFallbackGroupExecuteErrorOnly(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackendDown}
	secondary := &llmmock.Provider{Response: guardFrame}
	fg := newBackendChain(primary, secondary, 3)

	var answered string
	err := fg.Execute(func(p llm.Provider) error {
		resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
		if err != nil {
			return err
		}
		answered = resp.Content
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if answered != guardFrame {
		t.Errorf("answered = %q, want the fallback's frame", answered)
	}

	allDown := NewFallbackGroup[llm.Provider](
		&llmmock.Provider{Err: errBackendDown}, "openai-primary",
		FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})
	err = allDown.Execute(func(p llm.Provider) error {
		_, err := p.Complete(context.Background(), llm.CompletionRequest{})
		return err
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
