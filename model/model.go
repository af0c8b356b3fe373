package model

import (
	"context"
	"errors"

	"github.com/hupe1980/toolchat/core"
)

// ToolDescriptor declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset: type, properties,
// required, enum, default).
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the engine.
type Request struct {
	SystemPrompt string           `json:"system_prompt,omitempty"` // Optional instructions, never persisted
	Messages     []core.Message   `json:"messages"`                // Ordered conversation history
	Tools        []ToolDescriptor `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Turn is the tagged result of a completed model call: Final or ToolRequest.
type Turn interface{ isTurn() }

// Final is a plain textual answer; it ends the orchestration.
type Final struct {
	Text string
}

// ToolRequest asks the caller to execute the ordered calls and report back.
// Text holds any assistant text produced alongside the calls.
type ToolRequest struct {
	Text  string
	Calls []core.ToolCall
}

func (Final) isTurn()       {}
func (ToolRequest) isTurn() {}

// NewTurn picks the Turn variant for the given text and calls.
func NewTurn(text string, calls []core.ToolCall) Turn {
	if len(calls) > 0 {
		return ToolRequest{Text: text, Calls: calls}
	}
	return Final{Text: text}
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a chunk emitted by a model. Partial chunks carry a text Delta;
// the single terminal chunk carries the complete Turn.
type Response struct {
	Delta        string      `json:"delta,omitempty"`
	Turn         Turn        `json:"-"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// IsPartial reports whether r is an incremental text fragment.
func (r Response) IsPartial() bool { return r.Turn == nil }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the gateway contract. Generate returns a lazy, finite sequence of
// responses: zero or more partial deltas followed by exactly one terminal
// Response carrying the Turn, or a single error. Both channels are closed
// when the call ends. A sequence cannot be restarted; retrying means calling
// Generate again.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// errNoTurn is reported when a provider stream ends without a terminal chunk.
var errNoTurn = errors.New("model stream ended without a final turn")

// Complete drains a Generate call. onDelta (optional) receives every text
// fragment in order. Every failure is returned as *core.GatewayError.
func Complete(ctx context.Context, m Model, req Request, onDelta func(string)) (Turn, error) {
	respCh, errCh := m.Generate(ctx, req)
	provider := m.Info().Provider

	var turn Turn
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			go drain(respCh, errCh)
			return nil, core.NewGatewayError(provider, ctx.Err())
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Delta != "" && onDelta != nil {
				onDelta(resp.Delta)
			}
			if resp.Turn != nil {
				turn = resp.Turn
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				go drain(respCh, errCh)
				return nil, core.NewGatewayError(provider, err)
			}
		}
	}

	if turn == nil {
		return nil, core.NewGatewayError(provider, errNoTurn)
	}

	if tr, ok := turn.(ToolRequest); ok {
		turn = normalizeCalls(tr)
	}

	return turn, nil
}

// normalizeCalls assigns ids to calls the provider left unnamed and makes
// duplicate ids unique, so tool results can always be correlated.
func normalizeCalls(tr ToolRequest) ToolRequest {
	seen := make(map[string]bool, len(tr.Calls))
	calls := make([]core.ToolCall, len(tr.Calls))
	for i, c := range tr.Calls {
		if c.ID == "" || seen[c.ID] {
			c.ID = "call_" + core.NewID()
		}
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		seen[c.ID] = true
		calls[i] = c
	}
	return ToolRequest{Text: tr.Text, Calls: calls}
}

// drain consumes whatever a provider goroutine still sends so it can exit.
func drain(respCh <-chan Response, errCh <-chan error) {
	if respCh != nil {
		for range respCh {
		}
	}
	if errCh != nil {
		for range errCh {
		}
	}
}
