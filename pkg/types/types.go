// Package types defines the shared types used across the caller-agent packages.
//
// These types form the lingua franca between the providers, the turn engine,
// and the conversational policy. Each package defines its own domain types;
// cross-cutting data structures live here to avoid circular imports.
package types

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool/function offered to the LLM.
type ToolDefinition struct {
	// Name is the tool identifier the model uses to invoke it.
	Name string

	// Description tells the model when and why to call the tool.
	Description string

	// Parameters is a JSON Schema object describing the tool's arguments.
	Parameters map[string]any
}

// ModelCapabilities describes static metadata about an LLM backend.
type ModelCapabilities struct {
	// SupportsToolCalling reports whether the model can invoke tools.
	SupportsToolCalling bool

	// SupportsStreaming reports whether the model supports incremental output.
	SupportsStreaming bool

	// ContextWindow is the maximum number of input tokens the model accepts.
	ContextWindow int

	// MaxOutputTokens is the maximum number of completion tokens per request.
	MaxOutputTokens int
}
