// Package checkpoint provides ThreadStore implementations that persist the
// message sequence of each conversation thread.
//
// Available stores:
//
//   - InMemoryStore (this package): volatile, process local, for tests and demos
//   - sqlite.Store: durable append-only checkpoints in a SQLite database
//   - yamlfile.Store: one YAML document per thread, replaced atomically
//
// All stores satisfy the conformance suite in package checkpointtest.
package checkpoint
