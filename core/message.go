package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies the author of a Message. The set is closed: only the four
// constants below are valid and ParseRole rejects everything else.
type Role int

const (
	// RoleUser marks a message written by the human caller.
	RoleUser Role = iota + 1
	// RoleAssistant marks a message produced by the model.
	RoleAssistant
	// RoleTool marks the result of a single tool invocation.
	RoleTool
	// RoleSystem marks an instruction message.
	RoleSystem
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	case RoleSystem:
		return "system"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the four defined roles.
func (r Role) Valid() bool { return r >= RoleUser && r <= RoleSystem }

// ParseRole converts a wire name into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	case "tool":
		return RoleTool, nil
	case "system":
		return RoleSystem, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML).
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ToolCall is a single invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id" yaml:"id"`                         // Unique within the issuing assistant message
	Name      string         `json:"name" yaml:"name"`                     // Registered tool name
	Arguments map[string]any `json:"arguments" yaml:"arguments,omitempty"` // Named parameters; nil and empty are distinct
}

// ArgumentsJSON returns the arguments encoded as a JSON object. A nil map
// encodes as "{}" because providers reject a null arguments payload.
func (c ToolCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseArguments decodes a provider supplied JSON argument string.
// An empty string yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return args, nil
}

// Message is one turn in a conversation.
//
// Contract:
//   - ToolCalls is only set on assistant messages that request tools
//   - ToolCallID (and Name) are only set on tool messages
//   - Content may be empty on an assistant message that only requests tools
type Message struct {
	Role       Role       `json:"role" yaml:"role"`
	Content    string     `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	IsError    bool       `json:"is_error,omitempty" yaml:"is_error,omitempty"`
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// NewAssistantMessage creates a final assistant text message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewToolRequestMessage creates an assistant message carrying ordered tool calls.
func NewToolRequestMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: cloneCalls(calls)}
}

// HasToolCalls reports whether the message is an assistant tool request.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of the message (tool calls and argument maps).
func (m Message) Clone() Message {
	m.ToolCalls = cloneCalls(m.ToolCalls)
	return m
}

// CloneMessages deep copies a message slice. A nil input yields an empty,
// non-nil slice so callers can distinguish "no history" from "not loaded".
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

func cloneCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{ID: c.ID, Name: c.Name, Arguments: cloneArgs(c.Arguments)}
	}
	return out
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// Thread is a named, ordered, append-only message sequence.
type Thread struct {
	ID       string    `json:"thread_id"`
	Messages []Message `json:"messages"`
}

// NewID generates a new unique identifier (UUID v4) used for threads, runs
// and checkpoints.
func NewID() string { return uuid.NewString() }
