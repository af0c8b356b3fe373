package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/model"
)

func TestBuildMessages_GroupsToolResults(t *testing.T) {
	calls := []core.ToolCall{
		{ID: "c1", Name: "calculator"},
		{ID: "c2", Name: "stock_price"},
	}
	msgs := buildMessages([]core.Message{
		core.NewSystemMessage("ignored here"),
		core.NewUserMessage("hi"),
		core.NewToolRequestMessage("checking", calls),
		{Role: core.RoleTool, ToolCallID: "c1", Content: "4"},
		{Role: core.RoleTool, ToolCallID: "c2", Content: `{"error":"boom"}`, IsError: true},
		core.NewAssistantMessage("done"),
	})

	require.Len(t, msgs, 4)
	assert.Len(t, msgs[0].Content, 1)
	assert.Len(t, msgs[1].Content, 3)
	assert.Len(t, msgs[2].Content, 2)
	assert.Len(t, msgs[3].Content, 1)
	assert.EqualValues(t, "user", msgs[2].Role)
	assert.EqualValues(t, "assistant", msgs[3].Role)
}

func TestExtractSystem(t *testing.T) {
	blocks := extractSystem(model.Request{
		SystemPrompt: "be brief",
		Messages:     []core.Message{core.NewSystemMessage("extra"), core.NewUserMessage("hi")},
	})

	require.Len(t, blocks, 2)
	assert.Equal(t, "be brief", blocks[0].Text)
	assert.Equal(t, "extra", blocks[1].Text)

	assert.Empty(t, extractSystem(model.Request{}))
}

func TestRequiredNames(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredNames([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredNames([]any{"a", 1, "b"}))
	assert.Nil(t, requiredNames(nil))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDescriptor{{
		Name:        "wikipedia",
		Description: "look up a topic",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []any{"query"},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "wikipedia", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	info := m.Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.True(t, info.SupportsTools)
}
