package llm

// Message is a single message in a model conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional speaker name, used in multi-NPC group contexts so
	// the model can attribute prior turns.
	Name string
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens one completion may generate.
	MaxOutputTokens int

	// SupportsJSONOutput indicates the model reliably emits valid JSON when
	// instructed to. Models without it still work; frames that fail to
	// decode simply degrade to the fallback path more often.
	SupportsJSONOutput bool
}
