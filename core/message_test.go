package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_TextRoundTrip(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleTool, RoleSystem} {
		b, err := r.MarshalText()
		require.NoError(t, err)

		var parsed Role
		require.NoError(t, parsed.UnmarshalText(b))
		assert.Equal(t, r, parsed)
	}
}

func TestRole_RejectsUnknown(t *testing.T) {
	_, err := ParseRole("moderator")
	assert.Error(t, err)

	_, err = Role(0).MarshalText()
	assert.Error(t, err)
	assert.False(t, Role(9).Valid())
	assert.Equal(t, "role(9)", Role(9).String())

	var m Message
	err = json.Unmarshal([]byte(`{"role":"robot","content":"hi"}`), &m)
	assert.Error(t, err)
}

func TestMessage_JSONShape(t *testing.T) {
	msg := NewToolRequestMessage("", []ToolCall{{ID: "c1", Name: "calculator", Arguments: map[string]any{"first_num": 2.0}}})

	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","tool_calls":[{"id":"c1","name":"calculator","arguments":{"first_num":2}}]}`, string(b))
}

func TestMessage_CloneIsDeep(t *testing.T) {
	orig := NewToolRequestMessage("", []ToolCall{{ID: "c1", Name: "x", Arguments: map[string]any{"a": 1}}})

	cp := orig.Clone()
	cp.ToolCalls[0].Arguments["a"] = 2
	cp.ToolCalls[0].ID = "changed"

	assert.Equal(t, 1, orig.ToolCalls[0].Arguments["a"])
	assert.Equal(t, "c1", orig.ToolCalls[0].ID)
}

func TestCloneMessages_NilYieldsEmpty(t *testing.T) {
	out := CloneMessages(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMessage_HasToolCalls(t *testing.T) {
	assert.False(t, NewAssistantMessage("hi").HasToolCalls())
	assert.True(t, NewToolRequestMessage("", []ToolCall{{ID: "c1"}}).HasToolCalls())
	assert.False(t, Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "c1"}}}.HasToolCalls())
}

func TestToolCall_Arguments(t *testing.T) {
	assert.Equal(t, "{}", ToolCall{}.ArgumentsJSON())
	assert.JSONEq(t, `{"q":"go"}`, ToolCall{Arguments: map[string]any{"q": "go"}}.ArgumentsJSON())

	args, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments(`{"first_num": 3, "operation": "add"}`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, args["first_num"])
	assert.Equal(t, "add", args["operation"])

	_, err = ParseArguments(`{"first_num": `)
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
