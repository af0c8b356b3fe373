// Package engine implements the orchestration loop of toolchat.
//
// A run appends one user message to a thread and then alternates between the
// model gateway and the tool registry until the model answers without
// requesting tools:
//
//	Invoke ──► AwaitingModel ──► Final ─────────────► Done (Completed)
//	                 ▲   │
//	                 │   └──► ToolRequest ──► ExecutingTools
//	                 └──────────────────────────────┘
//
// # Core Responsibilities
//
// Orchestration:
//   - One gateway call per iteration, capped by Config.MaxIterations
//   - Tool calls of one assistant turn dispatched sequentially or in
//     parallel, results always appended in call order
//   - Tool failures become error payloads the model can react to; only
//     gateway failures, the iteration cap, cancellation and persistence
//     failures end a run
//
// Streaming:
//   - TextDelta, ToolStarted and ToolFinished events while the run progresses
//   - Exactly one terminal Completed or Failed event, then the channel closes
//
// Persistence:
//   - History is loaded and validated before the run starts
//   - Exactly one Save per run, containing only complete ask/act cycles
//   - A cancelled run closes open tool calls with a "cancelled" payload so
//     the stored history stays well formed
//
// # Concurrency Model
//
// Every run executes on its own goroutine. A thread has at most one active
// run; Invoke on a busy thread fails immediately with core.ErrThreadBusy.
// Runs on different threads share nothing but the store and the registry,
// both of which are safe for concurrent use.
//
// # Usage
//
//	reg := tool.NewRegistry()
//	_ = builtin.Register(reg)
//
//	eng := engine.New(gateway, reg, func(o *engine.Options) {
//	    o.Store = store
//	    o.Logger = logger
//	    o.Config.SystemPrompt = "You are a helpful assistant. Today is {{.date}}."
//	})
//
//	res, err := eng.InvokeSync(ctx, "thread-1", "What is 12 * 7?")
//
// # Callbacks
//
// A CallbackManager receives lifecycle hooks (before/after run, model and
// tool plus on_error). Errors returned from BeforeRun and BeforeModel abort
// the run, errors from BeforeTool turn into a tool error payload and all
// other callback errors are logged.
package engine
