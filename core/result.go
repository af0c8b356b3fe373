package core

import (
	"encoding/json"
	"fmt"
)

// ToolResult is the outcome of executing one ToolCall: either a success
// payload (Value) or an error payload (Err). It always becomes exactly one
// tool-role Message via Message().
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Value  any    `json:"value,omitempty"`
	Err    string `json:"error,omitempty"`
}

// NewToolSuccess creates a success result.
func NewToolSuccess(call ToolCall, value any) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Value: value}
}

// NewToolFailure creates an error result from err.
func NewToolFailure(call ToolCall, err error) ToolResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ToolResult{CallID: call.ID, Name: call.Name, Err: msg}
}

// IsError reports whether the result carries an error payload.
func (r ToolResult) IsError() bool { return r.Err != "" }

// Text serializes the result for insertion into history. Strings are kept
// verbatim, other values are JSON encoded and error payloads render as
// {"error": "..."}.
func (r ToolResult) Text() string {
	if r.IsError() {
		b, _ := json.Marshal(map[string]string{"error": r.Err})
		return string(b)
	}
	switch v := r.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// Message converts the result into its tool-role history message.
func (r ToolResult) Message() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Text(),
		ToolCallID: r.CallID,
		Name:       r.Name,
		IsError:    r.IsError(),
	}
}

// Summary returns the result text truncated to max runes, used for compact
// progress reporting.
func (r ToolResult) Summary(max int) string {
	text := []rune(r.Text())
	if max <= 0 || len(text) <= max {
		return string(text)
	}
	return string(text[:max]) + "…"
}
