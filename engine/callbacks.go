package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/logging"
	"github.com/hupe1980/toolchat/model"
)

// CallbackType defines the lifecycle points where callbacks are executed.
//
// Callbacks hook into the orchestration loop without modifying it:
//   - BeforeRun/AfterRun: around a complete run
//   - BeforeModel/AfterModel: around each model gateway call
//   - BeforeTool/AfterTool: around each tool dispatch
//   - OnError: when a run ends with a terminal failure
type CallbackType string

const (
	// CallbackBeforeRun is triggered after the thread is loaded and before
	// the first model call. An error aborts the run before anything is
	// persisted.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered after a successful run was persisted.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackBeforeModel is triggered before every model call. An error
	// terminates the run.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel is triggered after every successful model call.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool is triggered before each tool dispatch. An error
	// skips the dispatch; the call resolves with the error as payload.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered after each tool call resolved.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError is triggered when a run ends with a terminal failure.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a lifecycle point.
// Fields that do not apply to the callback type are left zero.
type CallbackContext struct {
	RunID     string
	ThreadID  string
	Iteration int

	// Request is set for BeforeModel/AfterModel.
	Request *model.Request
	// Turn is set for AfterModel.
	Turn model.Turn
	// Call is set for BeforeTool/AfterTool.
	Call *core.ToolCall
	// Result is set for AfterTool.
	Result *core.ToolResult
	// Err is set for OnError.
	Err error

	CallbackType CallbackType
}

// Callback defines the interface for lifecycle hooks.
//
// Implementations should be fast (they run synchronously on the run
// goroutine, and BeforeTool/AfterTool may run concurrently when parallel
// tool execution is enabled) and must not panic.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
//	audit := NewFunctionCallback(CallbackBeforeTool, func(ctx context.Context, cc *CallbackContext) error {
//	    log.Printf("tool %s requested", cc.Call.Name)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks executed in registration order.
// Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds callbacks to the manager.
func (cm *CallbackManager) RegisterCallback(callbacks ...Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, cb := range callbacks {
		cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
	}
}

// ExecuteCallbacks runs all callbacks of the given type sequentially and
// returns the first error. A nil manager is a no-op.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event. It never fails.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	args := []any{"run_id", cc.RunID, "thread_id", cc.ThreadID, "iteration", cc.Iteration}
	if cc.Call != nil {
		args = append(args, "tool", cc.Call.Name, "call_id", cc.Call.ID)
	}
	if cc.Result != nil {
		args = append(args, "tool_error", cc.Result.IsError())
	}
	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
	}

	c.logger.Info("engine.callback."+string(c.callbackType), args...)
	return nil
}
