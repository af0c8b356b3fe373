package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/toolchat/checkpoint"
	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/logging"
	"github.com/hupe1980/toolchat/model"
)

// ErrEmptyThreadID is returned when a run is requested without a thread id.
var ErrEmptyThreadID = errors.New("engine: thread id must not be empty")

// DefaultMaxIterations is the iteration cap applied when Config leaves it unset.
const DefaultMaxIterations = 10

// Config defines tuning parameters for the Engine's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    MaxIterations:   5,
//	    ParallelTools:   true,
//	    EventBufferSize: 256,
//	    Stream:          true,
//	}
type Config struct {
	// MaxIterations caps the number of model calls per run. A run whose
	// model keeps requesting tools ends with a *core.LimitExceededError once
	// the cap is reached. Values <= 0 fall back to DefaultMaxIterations.
	MaxIterations int

	// ParallelTools dispatches the calls of one assistant turn concurrently.
	// Results are still appended in call order.
	ParallelTools bool

	// MaxParallel bounds concurrent dispatches when ParallelTools is set.
	// Zero means one goroutine per call.
	MaxParallel int

	// EventBufferSize sets the stream channel buffer size.
	EventBufferSize int

	// Stream requests incremental text deltas from the model gateway.
	Stream bool

	// SystemPrompt is sent ahead of the history on every model call and is
	// never persisted. It may use text/template syntax with the variables
	// .thread_id and .date (YYYY-MM-DD).
	SystemPrompt string
}

// DefaultConfig provides the default configuration values.
var DefaultConfig = Config{
	MaxIterations:   DefaultMaxIterations,
	ParallelTools:   false,
	EventBufferSize: 100,
	Stream:          true,
}

// ToolSet is the tool surface the engine orchestrates. *tool.Registry
// implements it.
type ToolSet interface {
	Descriptors() []model.ToolDescriptor
	Dispatch(ctx context.Context, call core.ToolCall) core.ToolResult
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Store persists thread checkpoints. Defaults to an in-memory store.
	Store core.ThreadStore

	// Logger provides structured logging. Defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Executor overrides the tool executor built from Config.
	Executor ToolExecutor

	// Callbacks receives lifecycle hooks. Optional.
	Callbacks *CallbackManager

	// Clock supplies the date for system prompt templates. Defaults to time.Now.
	Clock func() time.Time
}

// Engine runs the ask/act orchestration loop for conversation threads.
//
// Core Responsibilities:
//   - Loads a thread, validates its history and appends the user message
//   - Alternates between model gateway calls and tool dispatch until the
//     model produces a final answer or a terminal failure occurs
//   - Streams progress as core.StreamEvent values
//   - Persists the run result with exactly one Save per run
//
// Concurrency Model:
//   - At most one active run per thread id; a second Invoke on a busy
//     thread fails with core.ErrThreadBusy
//   - Runs on different threads are independent
//   - Each run executes on its own goroutine and can be cancelled via Cancel
//     or by cancelling the context passed to Invoke
//
// Example Usage:
//
//	eng := engine.New(gateway, registry, func(o *engine.Options) {
//	    o.Store = store
//	    o.Logger = logger
//	})
//
//	runID, events, err := eng.Invoke(ctx, "thread-1", "What is 2+2?")
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    switch ev := ev.(type) {
//	    case core.TextDelta:
//	        fmt.Print(ev.Text)
//	    case core.Failed:
//	        return ev.Err
//	    }
//	}
type Engine struct {
	model     model.Model
	tools     ToolSet
	store     core.ThreadStore
	logger    logging.Logger
	config    Config
	executor  ToolExecutor
	callbacks *CallbackManager
	now       func() time.Time

	mu      sync.Mutex
	runs    map[string]context.CancelFunc // active runs by run id
	threads map[string]string             // thread id -> active run id
}

// New creates a new Engine for the given model gateway and tool set.
//
// The returned Engine is safe for concurrent use. It does not take
// ownership of the store; callers close durable stores themselves.
func New(m model.Model, tools ToolSet, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = checkpoint.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Config.MaxIterations <= 0 {
		opts.Config.MaxIterations = DefaultMaxIterations
	}
	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}
	if tools == nil {
		tools = noTools{}
	}
	if opts.Executor == nil {
		opts.Executor = NewToolExecutor(ExecutorConfig{
			Parallel:    opts.Config.ParallelTools,
			MaxParallel: opts.Config.MaxParallel,
			Logger:      opts.Logger,
		})
	}

	return &Engine{
		model:     m,
		tools:     tools,
		store:     opts.Store,
		logger:    opts.Logger,
		config:    opts.Config,
		executor:  opts.Executor,
		callbacks: opts.Callbacks,
		now:       opts.Clock,
		runs:      make(map[string]context.CancelFunc),
		threads:   make(map[string]string),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// Store returns the thread store used by the engine.
func (e *Engine) Store() core.ThreadStore { return e.store }

// Invoke starts a run that appends userText to the thread and drives the
// orchestration loop on a separate goroutine.
//
// Immediate errors (nothing started, nothing persisted):
//   - ErrEmptyThreadID
//   - ctx.Err() when ctx is already done
//   - core.ErrThreadBusy when the thread already has an active run or is
//     being deleted
//   - *core.PersistenceError when loading the thread fails
//   - *core.MalformedHistoryError when the stored history is inconsistent
//
// Otherwise the returned channel yields TextDelta, ToolStarted and
// ToolFinished events followed by exactly one Completed or Failed event, and
// is then closed. Callers must drain the channel until it is closed.
func (e *Engine) Invoke(ctx context.Context, threadID, userText string) (string, <-chan core.StreamEvent, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", nil, ErrEmptyThreadID
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	runID := core.NewID()
	if !e.acquire(threadID, runID) {
		return "", nil, fmt.Errorf("%w: thread %q", core.ErrThreadBusy, threadID)
	}

	history, err := e.store.Load(ctx, threadID)
	if err != nil {
		e.release(threadID, runID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		return "", nil, core.NewPersistenceError("load", threadID, err)
	}
	if err := core.ValidateHistory(history); err != nil {
		e.release(threadID, runID)
		e.logger.Error("engine.run.malformed_history", "thread_id", threadID, "error", err.Error())
		return "", nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.runs[runID] = cancel
	e.mu.Unlock()

	events := make(chan core.StreamEvent, e.config.EventBufferSize)

	r := &run{
		engine:   e,
		ctx:      runCtx,
		id:       runID,
		threadID: threadID,
		userText: userText,
		history:  history,
		events:   events,
		limiter:  core.NewIterationLimiter(e.config.MaxIterations),
		logger:   logging.With(e.logger, "run_id", runID, "thread_id", threadID),
	}

	go func() {
		defer close(events)

		terminal := r.execute()

		e.release(threadID, runID)
		cancel()

		events <- terminal
	}()

	return runID, events, nil
}

// Result is the outcome of a synchronous run.
type Result struct {
	RunID      string
	ThreadID   string
	Text       string         // final assistant text (empty on failure)
	Messages   []core.Message // messages produced by the run, user message first
	Iterations int            // model calls made
	Persisted  bool           // whether Messages reached the thread store
}

// InvokeSync runs Invoke to completion and returns the collected result. On
// a terminal failure the returned error is the Failed event's error and
// Result still carries the messages produced so far.
func (e *Engine) InvokeSync(ctx context.Context, threadID, userText string) (Result, error) {
	runID, events, err := e.Invoke(ctx, threadID, userText)
	if err != nil {
		return Result{ThreadID: threadID}, err
	}

	res := Result{RunID: runID, ThreadID: threadID}

	var runErr error
	for ev := range events {
		switch ev := ev.(type) {
		case core.Completed:
			res.Text = ev.Text
			res.Messages = ev.Appended
			res.Iterations = ev.Iterations
			res.Persisted = true
		case core.Failed:
			res.Messages = ev.Messages
			res.Iterations = ev.Iterations
			res.Persisted = ev.Persisted
			runErr = ev.Err
		}
	}

	return res, runErr
}

// Cancel stops an active run. The run resolves any open tool calls with a
// "cancelled" payload, persists its complete cycles and ends with a Failed
// event wrapping core.ErrCancelled.
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	cancel, exists := e.runs[runID]
	e.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()
	return nil
}

// ActiveRun returns the id of the run currently active on threadID.
func (e *Engine) ActiveRun(threadID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	runID, ok := e.threads[threadID]
	return runID, ok
}

// ListThreads returns the ids of all persisted threads.
func (e *Engine) ListThreads(ctx context.Context) ([]string, error) {
	ids, err := e.store.ListIDs(ctx)
	if err != nil {
		return nil, core.NewPersistenceError("list", "", err)
	}
	return ids, nil
}

// History returns the persisted messages of threadID.
func (e *Engine) History(ctx context.Context, threadID string) (core.Thread, error) {
	msgs, err := e.store.Load(ctx, threadID)
	if err != nil {
		return core.Thread{}, core.NewPersistenceError("load", threadID, err)
	}
	return core.Thread{ID: threadID, Messages: msgs}, nil
}

// DeleteThreads removes the given threads from the store. Threads with an
// active run are refused with core.ErrThreadBusy and nothing is deleted.
// The threads stay reserved until the delete returns, so an Invoke racing
// with it fails with core.ErrThreadBusy instead of resurrecting the thread.
func (e *Engine) DeleteThreads(ctx context.Context, threadIDs ...string) error {
	reservation := "delete-" + core.NewID()

	e.mu.Lock()
	for _, id := range threadIDs {
		if owner, busy := e.threads[id]; busy && owner != reservation {
			e.mu.Unlock()
			return fmt.Errorf("%w: thread %q", core.ErrThreadBusy, id)
		}
	}
	for _, id := range threadIDs {
		e.threads[id] = reservation
	}
	e.mu.Unlock()

	defer func() {
		for _, id := range threadIDs {
			e.release(id, reservation)
		}
	}()

	if err := e.store.Delete(ctx, threadIDs...); err != nil {
		return core.NewPersistenceError("delete", "", err)
	}
	e.logger.Info("engine.threads.deleted", "count", len(threadIDs))
	return nil
}

func (e *Engine) acquire(threadID, runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.threads[threadID]; busy {
		return false
	}
	e.threads[threadID] = runID
	return true
}

func (e *Engine) release(threadID, runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.threads[threadID] == runID {
		delete(e.threads, threadID)
	}
	delete(e.runs, runID)
}

type noTools struct{}

func (noTools) Descriptors() []model.ToolDescriptor { return nil }

func (noTools) Dispatch(_ context.Context, call core.ToolCall) core.ToolResult {
	return core.NewToolFailure(call, fmt.Errorf("tool %q not found", call.Name))
}
