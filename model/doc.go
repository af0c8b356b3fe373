// Package model defines the provider‑agnostic gateway to remote language
// models used by the toolchat engine.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize model output into a closed Turn variant (Final or ToolRequest)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight scripting for tests (ScriptedModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the engine remains decoupled from vendor SDKs.
package model
