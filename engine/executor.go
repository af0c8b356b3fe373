package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/logging"
)

// DispatchFunc resolves a single tool call. It must never panic and always
// return a result carrying call.ID.
type DispatchFunc func(ctx context.Context, call core.ToolCall) core.ToolResult

// ToolExecutor executes the calls of one assistant turn. Implementations must:
//   - Check ctx before dispatching each call and stop launching new calls
//     once it is done
//   - Return results in call order; the returned slice is always a prefix of
//     calls (calls never dispatched are simply absent)
//   - Invoke onStart right before and onFinish right after each dispatch
type ToolExecutor interface {
	Execute(
		ctx context.Context,
		calls []core.ToolCall,
		dispatch DispatchFunc,
		onStart func(core.ToolCall),
		onFinish func(core.ToolCall, core.ToolResult),
	) []core.ToolResult
}

// ExecutorConfig configures the default executor.
type ExecutorConfig struct {
	Parallel    bool // dispatch calls of one turn concurrently
	MaxParallel int  // 0 or <1 => no explicit limit (len(calls))
	Logger      logging.Logger
}

// NewToolExecutor constructs the default executor.
func NewToolExecutor(cfg ExecutorConfig) ToolExecutor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	return &toolExecutor{cfg: cfg}
}

type toolExecutor struct {
	cfg ExecutorConfig
}

func (e *toolExecutor) Execute(
	ctx context.Context,
	calls []core.ToolCall,
	dispatch DispatchFunc,
	onStart func(core.ToolCall),
	onFinish func(core.ToolCall, core.ToolResult),
) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	batchStart := time.Now()
	defer func() {
		e.cfg.Logger.Debug(
			"engine.tools.batch.complete",
			"count", n,
			"parallel", e.cfg.Parallel,
			"duration_ms", time.Since(batchStart).Milliseconds(),
		)
	}()

	// Fast path: sequential execution, or a single call.
	if !e.cfg.Parallel || n == 1 {
		results := make([]core.ToolResult, 0, n)
		for _, call := range calls {
			if ctx.Err() != nil {
				break
			}
			results = append(results, e.executeSingle(ctx, call, dispatch, onStart, onFinish))
		}
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.ToolResult, n)
	launched := 0

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	for i := range calls {
		if ctx.Err() != nil { // pre-check cancellation
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		launched++
		wg.Add(1)
		go func(idx int, call core.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeSingle(ctx, call, dispatch, onStart, onFinish)
		}(i, calls[i])
	}

	wg.Wait()

	return results[:launched]
}

func (e *toolExecutor) executeSingle(
	ctx context.Context,
	call core.ToolCall,
	dispatch DispatchFunc,
	onStart func(core.ToolCall),
	onFinish func(core.ToolCall, core.ToolResult),
) core.ToolResult {
	if onStart != nil {
		onStart(call)
	}

	start := time.Now()
	res := dispatch(ctx, call)
	if res.CallID == "" {
		res.CallID = call.ID
	}
	if res.Name == "" {
		res.Name = call.Name
	}

	e.cfg.Logger.Info(
		"engine.tool.executed",
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", res.IsError(),
	)

	if onFinish != nil {
		onFinish(call, res)
	}
	return res
}
