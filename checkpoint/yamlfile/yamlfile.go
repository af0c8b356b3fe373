// Package yamlfile implements a durable core.ThreadStore that keeps one YAML
// document per thread in a directory.
//
// Files are named after the base64url encoded thread id, so arbitrary ids are
// safe on every filesystem. Writes go to a temporary file in the same
// directory which is then renamed over the target, giving readers an atomic
// view of each checkpoint.
package yamlfile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/toolchat/core"
	"gopkg.in/yaml.v3"
)

const fileExt = ".yaml"

var _ core.ThreadStore = (*Store)(nil)

// Store persists threads as YAML documents below Dir.
type Store struct {
	dir string
	mu  sync.Mutex // serializes writers within the process
	now func() time.Time
}

// threadDocument is the on-disk layout of one thread.
type threadDocument struct {
	ThreadID  string            `yaml:"thread_id"`
	UpdatedAt time.Time         `yaml:"updated_at"`
	Messages  []messageDocument `yaml:"messages"`
}

type messageDocument struct {
	Role       core.Role      `yaml:"role"`
	Content    string         `yaml:"content,omitempty"`
	ToolCalls  []callDocument `yaml:"tool_calls,omitempty"`
	ToolCallID string         `yaml:"tool_call_id,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	IsError    bool           `yaml:"is_error,omitempty"`
}

// callDocument keeps arguments as a JSON string so numeric types round trip
// exactly as they do with the model providers.
type callDocument struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments,omitempty"`
}

// Open creates dir if needed and returns a store rooted there.
func Open(dir string) (*Store, error) {
	d := strings.TrimSpace(dir)
	if d == "" {
		return nil, errors.New("yamlfile: missing directory")
	}
	d = filepath.Clean(d)
	if err := os.MkdirAll(d, 0o700); err != nil {
		return nil, err
	}
	return &Store{dir: d, now: time.Now}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(threadID string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(threadID))+fileExt)
}

// Load reads the thread document, returning an empty slice when it does not exist.
func (s *Store) Load(ctx context.Context, threadID string) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewPersistenceError("load", threadID, err)
	}

	b, err := os.ReadFile(s.path(threadID))
	if errors.Is(err, os.ErrNotExist) {
		return []core.Message{}, nil
	}
	if err != nil {
		return nil, core.NewPersistenceError("load", threadID, err)
	}

	var doc threadDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, core.NewPersistenceError("load", threadID, fmt.Errorf("decode %s: %w", filepath.Base(s.path(threadID)), err))
	}

	msgs, err := fromDocuments(doc.Messages)
	if err != nil {
		return nil, core.NewPersistenceError("load", threadID, err)
	}
	return msgs, nil
}

// Save replaces the thread document atomically.
func (s *Store) Save(ctx context.Context, threadID string, msgs []core.Message) error {
	if err := ctx.Err(); err != nil {
		return core.NewPersistenceError("save", threadID, err)
	}

	doc := threadDocument{
		ThreadID:  threadID,
		UpdatedAt: s.now().UTC(),
		Messages:  toDocuments(msgs),
	}
	b, err := yaml.Marshal(&doc)
	if err != nil {
		return core.NewPersistenceError("save", threadID, fmt.Errorf("encode: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path(threadID), b); err != nil {
		return core.NewPersistenceError("save", threadID, err)
	}
	return nil
}

// ListIDs scans the directory and decodes thread ids from file names.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewPersistenceError("list", "", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, core.NewPersistenceError("list", "", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue // foreign file
		}
		ids = append(ids, string(raw))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the documents of the given threads.
func (s *Store) Delete(ctx context.Context, threadIDs ...string) error {
	if err := ctx.Err(); err != nil {
		return core.NewPersistenceError("delete", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range threadIDs {
		if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return core.NewPersistenceError("delete", id, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+fileExt)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func toDocuments(msgs []core.Message) []messageDocument {
	docs := make([]messageDocument, len(msgs))
	for i, m := range msgs {
		d := messageDocument{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
			IsError:    m.IsError,
		}
		for _, c := range m.ToolCalls {
			cd := callDocument{ID: c.ID, Name: c.Name}
			if c.Arguments != nil {
				cd.Arguments = c.ArgumentsJSON()
			}
			d.ToolCalls = append(d.ToolCalls, cd)
		}
		docs[i] = d
	}
	return docs
}

func fromDocuments(docs []messageDocument) ([]core.Message, error) {
	msgs := make([]core.Message, len(docs))
	for i, d := range docs {
		m := core.Message{
			Role:       d.Role,
			Content:    d.Content,
			ToolCallID: d.ToolCallID,
			Name:       d.Name,
			IsError:    d.IsError,
		}
		for _, cd := range d.ToolCalls {
			c := core.ToolCall{ID: cd.ID, Name: cd.Name}
			if cd.Arguments != "" {
				args := map[string]any{}
				if err := json.Unmarshal([]byte(cd.Arguments), &args); err != nil {
					return nil, fmt.Errorf("message %d: tool call %s: %w", i, cd.ID, err)
				}
				c.Arguments = args
			}
			m.ToolCalls = append(m.ToolCalls, c)
		}
		msgs[i] = m
	}
	return msgs, nil
}
