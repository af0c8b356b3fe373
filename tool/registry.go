package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/logging"
	"github.com/hupe1980/toolchat/model"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Logger receives tool.call.* events. Defaults to logging.NoOpLogger.
	Logger logging.Logger
	// CallTimeout bounds a single dispatch. Zero disables the registry level
	// bound; tools still honour the caller's context.
	CallTimeout time.Duration
}

// Registry holds the named tools available to the model and dispatches calls
// to them. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	opts  RegistryOptions
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{tools: map[string]Tool{}, opts: opts}
}

// Register adds tools to the registry. Names must be non-empty and unique.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return fmt.Errorf("tool registry: tool name must not be empty")
		}
		if _, exists := r.tools[t.Name()]; exists {
			return fmt.Errorf("tool registry: tool %q already registered", t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// wiring at process start.
func (r *Registry) MustRegister(tools ...Tool) {
	if err := r.Register(tools...); err != nil {
		panic(err)
	}
}

// RegisterFunc registers a plain function under name with the given schema.
func (r *Registry) RegisterFunc(name, description string, schema map[string]any, fn Func) error {
	return r.Register(NewFunctionTool(name, description, schema, fn))
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Descriptors returns the tool descriptors handed to the model gateway, in
// registration order.
func (r *Registry) Descriptors() []model.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]model.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		descs = append(descs, model.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return descs
}

// Dispatch executes a single tool call and always returns a ToolResult.
//
// Unknown tools, validation failures, handler errors and panics all become
// error results carrying the original call id; nothing escapes the boundary.
func (r *Registry) Dispatch(ctx context.Context, call core.ToolCall) (res core.ToolResult) {
	logger := r.opts.Logger
	start := time.Now()

	t, ok := r.Get(call.Name)
	if !ok {
		err := NewToolError(call.Name, fmt.Sprintf("tool %q not found", call.Name), CodeNotFound)
		logger.Warn("tool.call.not_found", "tool", call.Name, "call_id", call.ID)
		return core.NewToolFailure(call, errors.New(err.Message))
	}

	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("tool.call.panic", "tool", call.Name, "call_id", call.ID, "code", CodePanic, "recover", rec, "stack", string(debug.Stack()))
			res = core.NewToolFailure(call, fmt.Errorf("tool %q panicked: %v", call.Name, rec))
		}
	}()

	logger.Debug("tool.call.start", "tool", call.Name, "call_id", call.ID)

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	value, err := t.Call(ctx, args)
	dur := time.Since(start)
	if err != nil {
		toolErr := asToolError(call.Name, err, CodeExecution)
		logger.Warn("tool.call.error",
			"tool", call.Name,
			"call_id", call.ID,
			"code", toolErr.Code,
			"error", toolErr.Message,
			"duration_ms", dur.Milliseconds(),
		)
		return core.NewToolFailure(call, errors.New(toolErr.Message))
	}

	logger.Info("tool.call.success", "tool", call.Name, "call_id", call.ID, "duration_ms", dur.Milliseconds())
	return core.NewToolSuccess(call, value)
}
