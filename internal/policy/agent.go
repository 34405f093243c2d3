package policy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/types"
)

const (
	defaultTemperature = 0.7
	defaultMaxHistory  = 6
)

// Compile-time interface check.
var _ Policy = (*Agent)(nil)

// AgentOption is a functional option for configuring an Agent.
type AgentOption func(*Agent)

// WithTemperature sets the sampling temperature. Defaults to 0.7.
func WithTemperature(t float64) AgentOption {
	return func(a *Agent) {
		a.temperature = t
	}
}

// WithMaxHistory sets how many trailing conversation messages are sent to
// the model on each request. The state-dependent system prompt carries the
// extraction progress, so old messages add cost without adding signal.
// Defaults to 6.
func WithMaxHistory(n int) AgentOption {
	return func(a *Agent) {
		a.maxHistory = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) AgentOption {
	return func(a *Agent) {
		a.logger = logger
	}
}

// Agent is the LLM-backed Policy. One Agent serves one call: it owns the
// conversation history and the patient-info extraction form, and rebuilds
// its system prompt from the form before every model request.
type Agent struct {
	provider    llm.Provider
	logger      *slog.Logger
	temperature float64
	maxHistory  int

	mu      sync.Mutex
	history []types.Message
	info    PatientInfo
}

// NewAgent creates an Agent for a single call.
func NewAgent(provider llm.Provider, opts ...AgentOption) *Agent {
	a := &Agent{
		provider:    provider,
		logger:      slog.Default(),
		temperature: defaultTemperature,
		maxHistory:  defaultMaxHistory,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Info returns a snapshot of the extraction form.
func (a *Agent) Info() PatientInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	info := a.info
	info.MedicalConditions = append([]string(nil), a.info.MedicalConditions...)
	if a.info.Interested != nil {
		v := *a.info.Interested
		info.Interested = &v
	}
	if a.info.Extra != nil {
		info.Extra = make(map[string]string, len(a.info.Extra))
		for k, v := range a.info.Extra {
			info.Extra[k] = v
		}
	}
	return info
}

// Respond implements Policy.
func (a *Agent) Respond(ctx context.Context, transcript string) (<-chan Event, error) {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)

		if transcript != "" {
			a.mu.Lock()
			a.history = append(a.history, types.Message{Role: "user", Content: transcript})
			a.mu.Unlock()
		}

		endCall, forward, reason, err := a.exchange(ctx, ch, 0)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				a.logger.Error("policy exchange failed", "error", err)
			}
			emit(ctx, ch, Event{Err: err})
			return
		}
		if endCall || forward {
			emit(ctx, ch, Event{EndCall: endCall, Forward: forward, Reason: reason})
		}
	}()
	return ch, nil
}

// exchange performs one model request/response cycle: stream the reply,
// record it, apply any tool calls. An update_patient_info call changes the
// extraction state, so the model is invoked once more (depth 1) to let it
// speak with the updated system prompt; deeper recursion is not allowed.
func (a *Agent) exchange(ctx context.Context, ch chan<- Event, depth int) (endCall, forward bool, reason string, err error) {
	a.mu.Lock()
	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(a.info, len(a.history) > 0),
		Messages:     a.window(),
		Tools:        toolDefinitions,
		Temperature:  a.temperature,
	}
	a.mu.Unlock()

	chunks, err := a.provider.StreamCompletion(ctx, req)
	if err != nil {
		return false, false, "", err
	}

	var text strings.Builder
	var toolCalls []types.ToolCall
	for c := range chunks {
		if c.FinishReason == "error" {
			return false, false, "", errors.New(c.Text)
		}
		if c.Text != "" {
			text.WriteString(c.Text)
			if !emit(ctx, ch, Event{Delta: c.Text}) {
				return false, false, "", ctx.Err()
			}
		}
		toolCalls = append(toolCalls, c.ToolCalls...)
	}
	if err := ctx.Err(); err != nil {
		return false, false, "", err
	}

	a.mu.Lock()
	a.history = append(a.history, types.Message{
		Role:      "assistant",
		Content:   text.String(),
		ToolCalls: toolCalls,
	})
	a.mu.Unlock()

	updated := false
	for _, tc := range toolCalls {
		switch tc.Name {
		case ToolUpdatePatientInfo:
			a.mu.Lock()
			mergeErr := a.info.Merge(tc.Arguments)
			a.mu.Unlock()
			if mergeErr != nil {
				a.logger.Warn("ignoring malformed patient update",
					"arguments", tc.Arguments, "error", mergeErr)
				a.appendToolResult(tc.ID, "update rejected: malformed arguments")
				continue
			}
			a.appendToolResult(tc.ID, "patient info updated")
			updated = true

		case ToolEndCall:
			endCall = true
			reason = parseReason(tc.Arguments, ReasonCustomerUpset)
			a.appendToolResult(tc.ID, "call ended")

		case ToolForwardCall:
			forward = true
			reason = parseReason(tc.Arguments, ReasonInterested)
			a.appendToolResult(tc.ID, "call forwarded")

		default:
			a.logger.Warn("model invoked unknown tool", "tool", tc.Name)
			a.appendToolResult(tc.ID, "unknown tool")
		}
	}

	// A state update deserves a spoken follow-up under the new prompt,
	// unless the call is over anyway.
	if updated && depth == 0 && !endCall && !forward {
		return a.exchange(ctx, ch, depth+1)
	}
	return endCall, forward, reason, nil
}

// window returns the trailing maxHistory messages for the next request.
func (a *Agent) window() []types.Message {
	start := 0
	if len(a.history) > a.maxHistory {
		start = len(a.history) - a.maxHistory
	}
	out := make([]types.Message, len(a.history)-start)
	copy(out, a.history[start:])
	return out
}

func (a *Agent) appendToolResult(callID, result string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, types.Message{
		Role:       "tool",
		ToolCallID: callID,
		Content:    result,
	})
}

// emit sends ev unless ctx is done. Reports whether the send happened.
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
