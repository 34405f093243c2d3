// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI GPT-4o, a
// local Ollama instance) and exposes a uniform interface for the conversational
// policy to stream completions without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers return it
	// directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []types.Message

	// Tools is the set of function/tool definitions offered to the model. The
	// model may choose to call one or more of them in its response.
	Tools []types.ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0]. Lower
	// values produce more deterministic outputs.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Implementors that lack a dedicated system
	// field should prepend it as a "system"-role message.
	SystemPrompt string
}

// Chunk is a single token or fragment emitted by a streaming completion.
// A single chunk may carry text, a finish signal, tool calls, or any
// combination thereof.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty when
	// the chunk carries only ToolCalls or a FinishReason.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped. Common values are "stop", "length", "tool_calls", and "error"
	// (the backend failed mid-stream; Text then carries the error message).
	FinishReason string

	// ToolCalls contains fully accumulated tool invocations the model is
	// requesting. Implementations assemble streamed fragments and emit the
	// complete calls on the final chunk.
	ToolCalls []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model. The caller
	// executes them and appends the results to the conversation.
	ToolCalls []types.ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must propagate context cancellation promptly: when ctx is cancelled a method
// must return (or close its channel) as quickly as possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or when ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the channel is opened are surfaced as a Chunk with
	// FinishReason "error"; the initial error return is non-nil only for
	// failures that prevent the stream from starting.
	//
	// The returned channel must never be nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response. It is a
	// convenience for callers that do not need incremental output, such as the
	// admin text-message endpoint.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports. The result is assumed constant for the
	// lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
