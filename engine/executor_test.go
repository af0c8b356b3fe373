package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolchat/core"
)

func echoDispatch(delay func(core.ToolCall) time.Duration) DispatchFunc {
	return func(ctx context.Context, call core.ToolCall) core.ToolResult {
		if delay != nil {
			select {
			case <-time.After(delay(call)):
			case <-ctx.Done():
				return core.NewToolFailure(call, ctx.Err())
			}
		}
		return core.NewToolSuccess(call, call.ID)
	}
}

func makeCalls(n int) []core.ToolCall {
	calls := make([]core.ToolCall, n)
	for i := range calls {
		calls[i] = core.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "echo"}
	}
	return calls
}

func TestToolExecutor_Sequential(t *testing.T) {
	te := NewToolExecutor(ExecutorConfig{})

	var started, finished []string
	results := te.Execute(context.Background(), makeCalls(3), echoDispatch(nil),
		func(c core.ToolCall) { started = append(started, c.ID) },
		func(c core.ToolCall, _ core.ToolResult) { finished = append(finished, c.ID) },
	)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("c%d", i), res.CallID)
		assert.Equal(t, "echo", res.Name)
	}
	assert.Equal(t, []string{"c0", "c1", "c2"}, started)
	assert.Equal(t, []string{"c0", "c1", "c2"}, finished)
}

func TestToolExecutor_EmptyBatch(t *testing.T) {
	te := NewToolExecutor(ExecutorConfig{Parallel: true})
	assert.Empty(t, te.Execute(context.Background(), nil, echoDispatch(nil), nil, nil))
}

func TestToolExecutor_ParallelPreservesOrder(t *testing.T) {
	te := NewToolExecutor(ExecutorConfig{Parallel: true})

	// Earlier calls take longer, so completion order is reversed.
	delay := func(c core.ToolCall) time.Duration {
		switch c.ID {
		case "c0":
			return 60 * time.Millisecond
		case "c1":
			return 30 * time.Millisecond
		default:
			return time.Millisecond
		}
	}

	start := time.Now()
	results := te.Execute(context.Background(), makeCalls(3), echoDispatch(delay), nil, nil)
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("c%d", i), res.CallID)
	}
	assert.Less(t, elapsed, 85*time.Millisecond, "expected concurrent dispatch")
}

func TestToolExecutor_MaxParallel(t *testing.T) {
	te := NewToolExecutor(ExecutorConfig{Parallel: true, MaxParallel: 2})

	var inFlight, peak int32
	dispatch := func(_ context.Context, call core.ToolCall) core.ToolResult {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return core.NewToolSuccess(call, nil)
	}

	results := te.Execute(context.Background(), makeCalls(6), dispatch, nil, nil)

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestToolExecutor_FillsMissingCorrelation(t *testing.T) {
	te := NewToolExecutor(ExecutorConfig{})
	dispatch := func(context.Context, core.ToolCall) core.ToolResult {
		return core.ToolResult{Value: "x"}
	}

	results := te.Execute(context.Background(), makeCalls(1), dispatch, nil, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "c0", results[0].CallID)
	assert.Equal(t, "echo", results[0].Name)
}

func TestToolExecutor_CancellationReturnsPrefix(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			te := NewToolExecutor(ExecutorConfig{Parallel: parallel, MaxParallel: 1})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var once sync.Once
			dispatch := func(_ context.Context, call core.ToolCall) core.ToolResult {
				once.Do(cancel)
				return core.NewToolSuccess(call, call.ID)
			}

			results := te.Execute(ctx, makeCalls(4), dispatch, nil, nil)

			require.Len(t, results, 1)
			assert.Equal(t, "c0", results[0].CallID)
		})
	}
}

func TestToolExecutor_CancelledBeforeStart(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		te := NewToolExecutor(ExecutorConfig{Parallel: parallel})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls int32
		dispatch := func(_ context.Context, call core.ToolCall) core.ToolResult {
			atomic.AddInt32(&calls, 1)
			return core.NewToolSuccess(call, nil)
		}

		assert.Empty(t, te.Execute(ctx, makeCalls(3), dispatch, nil, nil))
		assert.Zero(t, atomic.LoadInt32(&calls))
	}
}
