package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/internal/util"
	"github.com/hupe1980/toolchat/logging"
	"github.com/hupe1980/toolchat/model"
)

// summaryLength bounds ToolFinished summaries (runes).
const summaryLength = 200

// run is the state of one orchestration run. It is confined to the run
// goroutine except for emit, which executor goroutines may call.
type run struct {
	engine   *Engine
	ctx      context.Context
	id       string
	threadID string
	userText string
	history  []core.Message // persisted history at start
	pending  []core.Message // messages produced by this run, complete units only
	cycles   int            // completed ask/act cycles
	events   chan<- core.StreamEvent
	limiter  *core.IterationLimiter
	logger   logging.Logger
}

// execute drives AwaitingModel -> ExecutingTools -> AwaitingModel ... -> Done
// and returns the terminal event.
func (r *run) execute() core.StreamEvent {
	start := time.Now()
	r.logger.Info("engine.run.start", "history_len", len(r.history))

	if err := r.engine.callbacks.ExecuteCallbacks(r.ctx, CallbackBeforeRun, r.callbackContext()); err != nil {
		return r.fail(fmt.Errorf("before_run callback: %w", err), start)
	}

	r.pending = []core.Message{core.NewUserMessage(r.userText)}

	systemPrompt, err := r.systemPrompt()
	if err != nil {
		return r.fail(err, start)
	}

	for {
		if r.ctx.Err() != nil {
			return r.cancelled(start)
		}
		if err := r.limiter.Increment(); err != nil {
			return r.fail(err, start)
		}

		turn, streamed, err := r.callModel(systemPrompt)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.cancelled(start)
			}
			return r.fail(err, start)
		}

		switch t := turn.(type) {
		case model.Final:
			if !streamed && t.Text != "" {
				r.emit(core.TextDelta{Text: t.Text})
			}
			r.pending = append(r.pending, core.NewAssistantMessage(t.Text))
			r.cycles++
			return r.complete(t.Text, start)

		case model.ToolRequest:
			if !streamed && t.Text != "" {
				r.emit(core.TextDelta{Text: t.Text})
			}
			complete := r.executeTools(t)
			r.cycles++
			if !complete {
				return r.cancelled(start)
			}

		default:
			return r.fail(core.NewGatewayError(r.engine.model.Info().Provider, fmt.Errorf("unexpected turn %T", turn)), start)
		}
	}
}

// callModel performs one gateway call and reports whether text deltas were
// streamed during it.
func (r *run) callModel(systemPrompt string) (model.Turn, bool, error) {
	msgs := make([]core.Message, 0, len(r.history)+len(r.pending))
	msgs = append(msgs, r.history...)
	msgs = append(msgs, r.pending...)

	req := model.Request{
		SystemPrompt: systemPrompt,
		Messages:     core.CloneMessages(msgs),
		Tools:        r.engine.tools.Descriptors(),
		Stream:       r.engine.config.Stream,
	}

	cc := r.callbackContext()
	cc.Request = &req
	if err := r.engine.callbacks.ExecuteCallbacks(r.ctx, CallbackBeforeModel, cc); err != nil {
		return nil, false, fmt.Errorf("before_model callback: %w", err)
	}

	start := time.Now()
	streamed := false
	turn, err := model.Complete(r.ctx, r.engine.model, req, func(delta string) {
		streamed = true
		r.emit(core.TextDelta{Text: delta})
	})
	dur := time.Since(start)

	if err != nil {
		r.logger.Warn("engine.model.error",
			"iteration", r.limiter.Count(),
			"duration_ms", dur.Milliseconds(),
			"error", err.Error(),
		)
		return nil, streamed, err
	}

	r.logger.Info("engine.model.call",
		"iteration", r.limiter.Count(),
		"duration_ms", dur.Milliseconds(),
		"turn", turnKind(turn),
	)

	cc.Turn = turn
	if err := r.engine.callbacks.ExecuteCallbacks(r.ctx, CallbackAfterModel, cc); err != nil {
		r.logger.Warn("engine.callback.error", "type", CallbackAfterModel, "error", err.Error())
	}

	return turn, streamed, nil
}

// executeTools appends the assistant tool request and one tool message per
// call, in call order. It returns false when cancellation stopped dispatch;
// the remaining calls are then resolved with a cancelled payload so the
// appended unit is still consistent.
func (r *run) executeTools(t model.ToolRequest) bool {
	results := r.engine.executor.Execute(
		r.ctx,
		t.Calls,
		r.dispatch,
		func(call core.ToolCall) {
			r.emit(core.ToolStarted{CallID: call.ID, Name: call.Name})
		},
		func(call core.ToolCall, res core.ToolResult) {
			r.emit(core.ToolFinished{
				CallID:  call.ID,
				Name:    call.Name,
				Summary: res.Summary(summaryLength),
				IsError: res.IsError(),
			})
		},
	)

	cycle := make([]core.Message, 0, len(t.Calls)+1)
	cycle = append(cycle, core.NewToolRequestMessage(t.Text, t.Calls))
	for _, res := range results {
		cycle = append(cycle, res.Message())
	}

	if len(results) == len(t.Calls) {
		r.pending = append(r.pending, cycle...)
		return true
	}

	closed := core.CloseDanglingToolCalls(cycle)
	for _, m := range closed[len(cycle):] {
		r.emit(core.ToolFinished{CallID: m.ToolCallID, Name: m.Name, Summary: m.Content, IsError: true})
	}
	r.logger.Info("engine.tools.cancelled", "dispatched", len(results), "requested", len(t.Calls))

	r.pending = append(r.pending, closed...)
	return false
}

// dispatch runs the tool callbacks around a single registry dispatch.
func (r *run) dispatch(ctx context.Context, call core.ToolCall) core.ToolResult {
	cc := r.callbackContext()
	cc.Call = &call

	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTool, cc); err != nil {
		r.logger.Warn("engine.tool.rejected", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return core.NewToolFailure(call, err)
	}

	res := r.engine.tools.Dispatch(ctx, call)

	cc.Result = &res
	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackAfterTool, cc); err != nil {
		r.logger.Warn("engine.callback.error", "type", CallbackAfterTool, "error", err.Error())
	}
	return res
}

func (r *run) complete(text string, start time.Time) core.StreamEvent {
	if err := r.persist(); err != nil {
		r.logger.Error("engine.run.persist_failed", "error", err.Error())
		r.onError(err)
		return core.Failed{Err: err, Messages: core.CloneMessages(r.pending), Iterations: r.limiter.Count()}
	}

	if err := r.engine.callbacks.ExecuteCallbacks(r.ctx, CallbackAfterRun, r.callbackContext()); err != nil {
		r.logger.Warn("engine.callback.error", "type", CallbackAfterRun, "error", err.Error())
	}

	r.logger.Info("engine.run.complete",
		"iterations", r.limiter.Count(),
		"appended", len(r.pending),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return core.Completed{
		Text:       text,
		Appended:   core.CloneMessages(r.pending),
		Iterations: r.limiter.Count(),
	}
}

// fail ends the run with err. Complete cycles are persisted; a run that
// has not completed a cycle leaves the thread untouched.
func (r *run) fail(err error, start time.Time) core.StreamEvent {
	persisted := false
	if r.cycles > 0 {
		if perr := r.persist(); perr != nil {
			r.logger.Error("engine.run.persist_failed", "error", perr.Error())
			err = errors.Join(err, perr)
		} else {
			persisted = true
		}
	}

	r.logger.Error("engine.run.failed",
		"error", err.Error(),
		"iterations", r.limiter.Count(),
		"persisted", persisted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	r.onError(err)

	return core.Failed{
		Err:        err,
		Messages:   core.CloneMessages(r.pending),
		Persisted:  persisted,
		Iterations: r.limiter.Count(),
	}
}

func (r *run) cancelled(start time.Time) core.StreamEvent {
	return r.fail(core.ErrCancelled, start)
}

func (r *run) onError(err error) {
	cc := r.callbackContext()
	cc.Err = err
	if cbErr := r.engine.callbacks.ExecuteCallbacks(context.WithoutCancel(r.ctx), CallbackOnError, cc); cbErr != nil {
		r.logger.Warn("engine.callback.error", "type", CallbackOnError, "error", cbErr.Error())
	}
}

// persist saves history plus the run's messages in a single Save. It runs
// detached from run cancellation so a cancelled run still records its
// complete cycles.
func (r *run) persist() error {
	all := make([]core.Message, 0, len(r.history)+len(r.pending))
	all = append(all, r.history...)
	all = append(all, r.pending...)

	if err := r.engine.store.Save(context.WithoutCancel(r.ctx), r.threadID, all); err != nil {
		return core.NewPersistenceError("save", r.threadID, err)
	}
	return nil
}

// emit delivers a non-terminal event. Once the run is cancelled events that
// do not fit the buffer are dropped rather than blocking.
func (r *run) emit(ev core.StreamEvent) {
	select {
	case r.events <- ev:
		return
	default:
	}
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

func (r *run) systemPrompt() (string, error) {
	return util.RenderTemplate(r.engine.config.SystemPrompt, map[string]any{
		"thread_id": r.threadID,
		"date":      r.engine.now().Format("2006-01-02"),
	})
}

func (r *run) callbackContext() *CallbackContext {
	return &CallbackContext{
		RunID:     r.id,
		ThreadID:  r.threadID,
		Iteration: r.limiter.Count(),
	}
}

func turnKind(t model.Turn) string {
	switch t := t.(type) {
	case model.Final:
		return "final"
	case model.ToolRequest:
		return fmt.Sprintf("tool_request(%d)", len(t.Calls))
	default:
		return "unknown"
	}
}
