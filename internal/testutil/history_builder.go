package testutil

import (
	"github.com/hupe1980/toolchat/core"
)

// HistoryBuilder helps construct message histories with fluent chaining for tests.
// Example:
//
//	msgs := NewHistory().
//		User("what is 2+2?").
//		ToolRequest("", Call("c1", "calculator", map[string]any{"operation": "add"})).
//		ToolResult("c1", "calculator", `{"result":4}`).
//		Assistant("4").
//		Build()
type HistoryBuilder struct {
	msgs []core.Message
}

// NewHistory creates an empty builder.
func NewHistory() *HistoryBuilder {
	return &HistoryBuilder{}
}

// User appends a user message (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewUserMessage(text))
	return b
}

// System appends a system message (chainable).
func (b *HistoryBuilder) System(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewSystemMessage(text))
	return b
}

// Assistant appends a final assistant message (chainable).
func (b *HistoryBuilder) Assistant(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewAssistantMessage(text))
	return b
}

// ToolRequest appends an assistant message carrying calls (chainable).
func (b *HistoryBuilder) ToolRequest(text string, calls ...core.ToolCall) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewToolRequestMessage(text, calls))
	return b
}

// ToolResult appends a successful tool message (chainable).
func (b *HistoryBuilder) ToolResult(callID, name, content string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.Message{Role: core.RoleTool, ToolCallID: callID, Name: name, Content: content})
	return b
}

// ToolError appends a tool message carrying an error payload (chainable).
func (b *HistoryBuilder) ToolError(callID, name, errMsg string) *HistoryBuilder {
	res := core.ToolResult{CallID: callID, Name: name, Err: errMsg}
	b.msgs = append(b.msgs, res.Message())
	return b
}

// Message appends arbitrary messages (chainable).
func (b *HistoryBuilder) Message(msgs ...core.Message) *HistoryBuilder {
	b.msgs = append(b.msgs, msgs...)
	return b
}

// Build returns a copy of the accumulated history.
func (b *HistoryBuilder) Build() []core.Message {
	return core.CloneMessages(b.msgs)
}

// Call is shorthand for a core.ToolCall literal.
func Call(id, name string, args map[string]any) core.ToolCall {
	if args == nil {
		args = map[string]any{}
	}
	return core.ToolCall{ID: id, Name: name, Arguments: args}
}
