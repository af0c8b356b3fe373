// Package toolchat provides a high-level façade over the orchestration
// engine: a conversational agent that answers user messages with a
// tool-calling language model, keeps every conversation as a persisted
// thread and streams its progress.
//
// Most applications interact with this package by:
//  1. Creating a ToolChat via New() with a model gateway (optionally
//     overriding the default in-memory store, tools and logger)
//  2. Starting or resuming threads asynchronously (StartOrResume) or
//     synchronously (Chat)
//  3. Browsing threads with ListThreads and GetHistory
//
// All defaults are safe for local development and testing; durable
// deployments supply a checkpoint/sqlite or checkpoint/yamlfile store and a
// structured logger.
package toolchat

import (
	"context"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/engine"
	"github.com/hupe1980/toolchat/logging"
	"github.com/hupe1980/toolchat/model"
	"github.com/hupe1980/toolchat/tool"
	"github.com/hupe1980/toolchat/tool/builtin"
)

// Options configures the ToolChat instance.
type Options struct {
	// EngineConfig tunes the orchestration loop (iteration cap, parallel
	// tools, streaming, system prompt).
	EngineConfig engine.Config

	// Store persists threads (defaults to an in-memory store).
	Store core.ThreadStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// DisableBuiltins skips registration of the builtin tools.
	DisableBuiltins bool

	// Builtin configures the builtin tools (API keys, endpoints, timeout).
	Builtin []func(o *builtin.Options)

	// Tools are registered after the builtins.
	Tools []tool.Tool

	// Callbacks receives engine lifecycle hooks. Optional.
	Callbacks *engine.CallbackManager
}

// ToolChat is the high-level façade aggregating the engine and the tool
// registry.
type ToolChat struct {
	engine   *engine.Engine
	registry *tool.Registry
}

// New creates a ToolChat answering with m. Tool registration fails on
// duplicate tool names.
func New(m model.Model, optFns ...func(o *Options)) (*ToolChat, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = opts.Logger
	})

	if !opts.DisableBuiltins {
		if err := builtin.Register(registry, opts.Builtin...); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(opts.Tools...); err != nil {
		return nil, err
	}

	eng := engine.New(m, registry, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})

	return &ToolChat{engine: eng, registry: registry}, nil
}

// Engine exposes the underlying engine.
func (c *ToolChat) Engine() *engine.Engine { return c.engine }

// Registry exposes the tool registry.
func (c *ToolChat) Registry() *tool.Registry { return c.registry }

// StartOrResume appends text to the thread (creating it on first use) and
// returns the run id plus the event stream of the run. The stream ends with
// exactly one core.Completed or core.Failed event and must be drained.
func (c *ToolChat) StartOrResume(ctx context.Context, threadID, text string) (string, <-chan core.StreamEvent, error) {
	return c.engine.Invoke(ctx, threadID, text)
}

// Chat is the synchronous variant of StartOrResume.
func (c *ToolChat) Chat(ctx context.Context, threadID, text string) (engine.Result, error) {
	return c.engine.InvokeSync(ctx, threadID, text)
}

// Cancel stops an active run.
func (c *ToolChat) Cancel(runID string) error { return c.engine.Cancel(runID) }

// ListThreads returns the ids of all persisted threads.
func (c *ToolChat) ListThreads(ctx context.Context) ([]string, error) {
	return c.engine.ListThreads(ctx)
}

// GetHistory returns the persisted messages of a thread. Unknown threads
// yield an empty history.
func (c *ToolChat) GetHistory(ctx context.Context, threadID string) (core.Thread, error) {
	return c.engine.History(ctx, threadID)
}

// DeleteThreads removes threads from the store.
func (c *ToolChat) DeleteThreads(ctx context.Context, threadIDs ...string) error {
	return c.engine.DeleteThreads(ctx, threadIDs...)
}

// NewThreadID generates a fresh thread id.
func NewThreadID() string { return core.NewID() }
