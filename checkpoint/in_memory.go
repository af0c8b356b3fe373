package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/toolchat/core"
)

var _ core.ThreadStore = (*InMemoryStore)(nil)

// InMemoryStore is a volatile ThreadStore storing the latest checkpoint of
// each thread in a process local map. It is safe for concurrent access and
// best suited for tests or ephemeral demo setups. Messages are deep copied on
// both Save and Load to prevent external mutation of stored history.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]core.Message
}

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]core.Message)}
}

// Load returns a copy of the latest checkpoint, or an empty slice.
func (s *InMemoryStore) Load(ctx context.Context, threadID string) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewPersistenceError("load", threadID, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneMessages(s.threads[threadID]), nil
}

// Save replaces the checkpoint of threadID with a copy of msgs.
func (s *InMemoryStore) Save(ctx context.Context, threadID string, msgs []core.Message) error {
	if err := ctx.Err(); err != nil {
		return core.NewPersistenceError("save", threadID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = core.CloneMessages(msgs)
	return nil
}

// ListIDs returns the ids of all threads with a checkpoint, sorted.
func (s *InMemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewPersistenceError("list", "", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the given threads. Unknown ids are ignored.
func (s *InMemoryStore) Delete(ctx context.Context, threadIDs ...string) error {
	if err := ctx.Err(); err != nil {
		return core.NewPersistenceError("delete", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range threadIDs {
		delete(s.threads, id)
	}
	return nil
}
