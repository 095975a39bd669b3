package openai

import (
	"strings"
	"testing"

	"github.com/duskfolk/duskfolk/pkg/provider/llm"
)

// TestNew_Validation checks constructor argument validation.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty apiKey, got nil")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model, got nil")
	}
	if _, err := New("sk-test", "gpt-4o-mini"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	msg := llm.Message{Role: "system", Content: "You are a villager."}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	msg := llm.Message{Role: "user", Content: "Hello!"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_Assistant checks that assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	msg := llm.Message{Role: "assistant", Content: "Hi there!", Name: "mira"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	msg := llm.Message{Role: "narrator", Content: "test"}
	if _, err := convertMessage(msg); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestBuildParams checks system prompt prepending and sampling options.
func TestBuildParams(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are Mira, a herbalist.",
		Messages: []llm.Message{
			{Role: "user", Content: "Got any remedies?"},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected first message to be the system prompt")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected second message to be the user message")
	}
	if params.Temperature.Value != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", params.Temperature.Value)
	}
	if params.MaxCompletionTokens.Value != 256 {
		t.Errorf("expected max completion tokens 256, got %v", params.MaxCompletionTokens.Value)
	}
}

// TestBuildParams_RejectsUnknownRole checks that a bad role fails the build.
func TestBuildParams_RejectsUnknownRole(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "narrator", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestModelCapabilities_GPT4oMini checks gpt-4o-mini capabilities.
func TestModelCapabilities_GPT4oMini(t *testing.T) {
	caps := modelCapabilities("gpt-4o-mini")
	if caps.ContextWindow != 128_000 {
		t.Errorf("gpt-4o-mini: expected context window 128000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 16_384 {
		t.Errorf("gpt-4o-mini: expected max output 16384, got %d", caps.MaxOutputTokens)
	}
	if !caps.SupportsJSONOutput {
		t.Error("gpt-4o-mini: expected SupportsJSONOutput=true")
	}
}

// TestModelCapabilities_GPT4 checks base gpt-4 capabilities.
func TestModelCapabilities_GPT4(t *testing.T) {
	caps := modelCapabilities("gpt-4")
	if caps.ContextWindow != 8_192 {
		t.Errorf("gpt-4: expected context window 8192, got %d", caps.ContextWindow)
	}
}

// TestModelCapabilities_O1 checks reasoning-model capabilities.
func TestModelCapabilities_O1(t *testing.T) {
	caps := modelCapabilities("o1")
	if caps.ContextWindow != 200_000 {
		t.Errorf("o1: expected context window 200000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 100_000 {
		t.Errorf("o1: expected max output 100000, got %d", caps.MaxOutputTokens)
	}
}

// TestCountTokens checks the character-based approximation.
func TestCountTokens(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 40 chars → 10 content tokens + 4 overhead.
	n, err := p.CountTokens([]llm.Message{
		{Role: "user", Content: strings.Repeat("a", 40)},
	})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 14 {
		t.Errorf("expected 14 tokens, got %d", n)
	}

	n, err = p.CountTokens(nil)
	if err != nil {
		t.Fatalf("CountTokens(nil): %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 tokens for no messages, got %d", n)
	}
}
