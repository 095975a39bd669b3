// Package llm defines the Provider interface for the language-model backends
// that drive NPC cognition.
//
// A provider wraps a remote or local chat-completion API (OpenAI, Anthropic,
// a local Ollama instance, ...) and exposes a uniform request/response surface
// so the cognitive engine, the reflection summariser, and the conversation
// orchestrator never couple to a specific SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: every reactive cycle runs its model call under a
// deadline, and a provider that ignores ctx turns a degraded NPC response
// into a stuck agent worker.
package llm

import "context"

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers return
	// it directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// A zero-value request is invalid; at minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// the "user" perception that drives the response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. The cognitive
	// engine uses 0.7 for reactive cycles and 0.3 for reflection.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int

	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot must prepend
	// it as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is the full, non-streaming model reply.
type CompletionResponse struct {
	// Content is the text of the reply. For cognition calls this is a JSON
	// document that the mind package decodes into a cognitive frame.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns an error if the request fails or ctx is cancelled before
	// the completion arrives; callers treat either as a degraded-cognition
	// signal, never as fatal.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume in the
	// model's context window. The result need not be exact but should not
	// undercount; it gates how much memory context a prompt may carry.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the underlying model,
	// assumed constant for the lifetime of the Provider instance.
	Capabilities() ModelCapabilities
}
