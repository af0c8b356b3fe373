// Package checkpointtest provides a conformance suite every core.ThreadStore
// implementation must pass.
package checkpointtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/toolchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) core.ThreadStore

// SampleConversation returns a valid history with two tool cycles, the second
// one calling a tool without arguments. Argument values use JSON native types
// so they survive encoding unchanged.
func SampleConversation() []core.Message {
	return []core.Message{
		core.NewUserMessage("what is 10 / 4, and AAPL?"),
		core.NewToolRequestMessage("Let me check.", []core.ToolCall{
			{ID: "call_1", Name: "calculator", Arguments: map[string]any{"first_num": 10.0, "second_num": 4.0, "operation": "div"}},
			{ID: "call_2", Name: "get_stock_price", Arguments: map[string]any{"symbol": "AAPL"}},
		}),
		{Role: core.RoleTool, ToolCallID: "call_1", Name: "calculator", Content: `{"first_num":10,"second_num":4,"operation":"div","result":2.5}`},
		{Role: core.RoleTool, ToolCallID: "call_2", Name: "get_stock_price", Content: `{"error":"API limit reached"}`, IsError: true},
		core.NewAssistantMessage("10 / 4 = 2.5. The quote service is unavailable."),
		core.NewUserMessage("frobnicate please"),
		core.NewToolRequestMessage("", []core.ToolCall{
			{ID: "call_3", Name: "frobnicate", Arguments: map[string]any{}},
		}),
		{Role: core.RoleTool, ToolCallID: "call_3", Name: "frobnicate", Content: "done"},
		core.NewAssistantMessage("Frobnicated."),
	}
}

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("UnknownThreadIsEmpty", func(t *testing.T) {
		s := newStore(t)
		msgs, err := s.Load(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, msgs)

		ids, err := s.ListIDs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("SaveLoadIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		want := SampleConversation()

		require.NoError(t, s.Save(ctx, "t1", want))
		got, err := s.Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, want, got)

		require.NoError(t, s.Save(ctx, "t1", got))
		again, err := s.Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, want, again)
	})

	t.Run("LatestCheckpointWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := []core.Message{core.NewUserMessage("hi"), core.NewAssistantMessage("hello")}
		require.NoError(t, s.Save(ctx, "t1", first))

		second := append(core.CloneMessages(first), core.NewUserMessage("again"), core.NewAssistantMessage("hello again"))
		require.NoError(t, s.Save(ctx, "t1", second))

		got, err := s.Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, second, got)

		ids, err := s.ListIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"t1"}, ids)
	})

	t.Run("ListReflectsSavedThreads", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"b", "a", "c/with slash", "a"} {
			require.NoError(t, s.Save(ctx, id, []core.Message{core.NewUserMessage("x")}))
		}

		ids, err := s.ListIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c/with slash"}, ids)
	})

	t.Run("DeleteRemovesThreads", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.Save(ctx, id, []core.Message{core.NewUserMessage(id)}))
		}
		require.NoError(t, s.Delete(ctx, "a", "c", "unknown"))

		ids, err := s.ListIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids)

		msgs, err := s.Load(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("ThreadsAreIndependent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "t1", []core.Message{core.NewUserMessage("one")}))
		require.NoError(t, s.Save(ctx, "t2", []core.Message{core.NewUserMessage("two")}))

		got, err := s.Load(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "one", got[0].Content)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("t%d", i)
				msgs := []core.Message{core.NewUserMessage(id), core.NewAssistantMessage("ok")}
				assert.NoError(t, s.Save(ctx, id, msgs))
			}(i)
		}
		wg.Wait()

		ids, err := s.ListIDs(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 8)

		for _, id := range ids {
			msgs, err := s.Load(ctx, id)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, id, msgs[0].Content)
			require.NoError(t, core.ValidateHistory(msgs))
		}
	})
}
