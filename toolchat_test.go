package toolchat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolchat/checkpoint/sqlite"
	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/internal/testutil"
	"github.com/hupe1980/toolchat/model"
	"github.com/hupe1980/toolchat/tool"
	"github.com/hupe1980/toolchat/tool/builtin"
)

func TestNew_RegistersBuiltins(t *testing.T) {
	c, err := New(model.NewScriptedModel())
	require.NoError(t, err)

	assert.Equal(t, []string{
		builtin.WebSearchName,
		builtin.WikipediaSearchName,
		builtin.NewsSearchName,
		builtin.StockPriceName,
		builtin.CalculatorName,
	}, c.Registry().Names())
}

func TestNew_DuplicateToolName(t *testing.T) {
	dup := tool.NewFunctionTool(builtin.CalculatorName, "shadow", nil, func(context.Context, map[string]any) (any, error) {
		return nil, nil
	})

	_, err := New(model.NewScriptedModel(), func(o *Options) { o.Tools = []tool.Tool{dup} })
	assert.Error(t, err)

	c, err := New(model.NewScriptedModel(), func(o *Options) {
		o.DisableBuiltins = true
		o.Tools = []tool.Tool{dup}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{builtin.CalculatorName}, c.Registry().Names())
}

func TestChat_CalculatorRoundTrip(t *testing.T) {
	m := model.NewScriptedModel(
		model.ToolStep(testutil.Call("c1", builtin.CalculatorName, map[string]any{
			"first_num": 12.0, "second_num": 7.0, "operation": "mul",
		})),
		model.FinalStep("12 * 7 = 84"),
	)
	c, err := New(m)
	require.NoError(t, err)

	threadID := NewThreadID()
	res, err := c.Chat(context.Background(), threadID, "What is 12 * 7?")
	require.NoError(t, err)
	assert.Equal(t, "12 * 7 = 84", res.Text)

	thread, err := c.GetHistory(context.Background(), threadID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 4)
	assert.JSONEq(t,
		`{"first_num":12,"second_num":7,"operation":"mul","result":84}`,
		thread.Messages[2].Content,
	)

	ids, err := c.ListThreads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{threadID}, ids)
}

func TestStartOrResume_DivisionByZeroIsAToolError(t *testing.T) {
	m := model.NewScriptedModel(
		model.ToolStep(testutil.Call("c1", builtin.CalculatorName, map[string]any{
			"first_num": 1.0, "second_num": 0.0, "operation": "div",
		})),
		model.FinalStep("cannot divide by zero"),
	)
	c, err := New(m)
	require.NoError(t, err)

	_, events, err := c.StartOrResume(context.Background(), "t1", "1/0?")
	require.NoError(t, err)
	evs := testutil.Collect(t, events, 2*time.Second)

	finished := testutil.OfType[core.ToolFinished](evs)
	require.Len(t, finished, 1)
	assert.True(t, finished[0].IsError)
	assert.Equal(t, `{"error":"Division by zero is not allowed"}`, finished[0].Summary)

	assert.IsType(t, core.Completed{}, testutil.Terminal(t, evs))
}

func TestThreadsSurviveReopen(t *testing.T) {
	path := t.TempDir() + "/chatbot.db"

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	c, err := New(model.NewScriptedModel(model.FinalStep("hello")), func(o *Options) { o.Store = store })
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "t1", "hi")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	m := model.NewScriptedModel(model.FinalStep("still here"))
	c, err = New(m, func(o *Options) { o.Store = store })
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), "t1", "are you there?")
	require.NoError(t, err)
	require.Len(t, m.Requests(), 1)
	assert.Len(t, m.Requests()[0].Messages, 3)

	require.NoError(t, c.DeleteThreads(context.Background(), "t1"))
	ids, err := c.ListThreads(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChat_SQLiteHistoryMatchesRun(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	m := model.NewScriptedModel(
		model.ToolStep(testutil.Call("c1", "frobnicate", nil)),
		model.FinalStep("done"),
	)
	c, err := New(m, func(o *Options) { o.Store = store })
	require.NoError(t, err)

	res, err := c.Chat(context.Background(), "t1", "frobnicate")
	require.NoError(t, err)
	require.Len(t, res.Messages, 4)
	require.NotNil(t, res.Messages[1].ToolCalls[0].Arguments)

	loaded, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, res.Messages, loaded)
}

func TestCancelUnknownRun(t *testing.T) {
	c, err := New(model.NewScriptedModel())
	require.NoError(t, err)
	assert.Error(t, c.Cancel("missing"))
}
