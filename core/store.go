package core

import "context"

// ThreadStore persists the message sequence of conversation threads as
// checkpoints keyed by thread id.
//
// Contract:
//   - Load returns the latest saved sequence, or an empty slice for an unknown id
//   - Save is atomic: a concurrent Load never observes a partially written sequence
//   - ListIDs is derived from persisted checkpoints (no separate index) and
//     returns each id once, sorted
//   - Delete is an explicit bulk operation invoked by callers, never by the engine
//   - Storage failures are returned as *PersistenceError, never swallowed
type ThreadStore interface {
	Load(ctx context.Context, threadID string) ([]Message, error)
	Save(ctx context.Context, threadID string, msgs []Message) error
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, threadIDs ...string) error
}
