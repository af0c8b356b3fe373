// Package core provides the foundational domain types and contracts used by
// toolchat. It defines:
//
//   - Messages (closed Role variant, tool calls, tool call correlation)
//   - ToolResults (success or error payloads of a single tool invocation)
//   - Threads and the ThreadStore checkpoint contract
//   - StreamEvents (the incremental output of a running orchestration)
//   - The error taxonomy shared by the engine, stores and gateways
//
// The package intentionally keeps implementation concerns (model providers,
// persistence backends, orchestration) out of scope, exposing small types and
// interfaces so that concrete backends can be swapped without touching callers.
package core
