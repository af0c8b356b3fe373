package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/toolchat/core"
)

// ErrScriptExhausted is returned when a ScriptedModel receives more calls
// than scripted steps.
var ErrScriptExhausted = errors.New("scripted model: no more steps")

// Step is one scripted model call: either a Turn or an Err.
type Step struct {
	Turn Turn
	Err  error
}

// ScriptedModel is a lightweight in‑memory Model useful for tests & demos.
// Each Generate call consumes the next Step. When Stream is requested, final
// texts are emitted rune by rune before the terminal response.
type ScriptedModel struct {
	info     Info
	mu       sync.Mutex
	steps    []Step
	repeat   *Step
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel replaying the given steps.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// Then appends further steps (chainable).
func (m *ScriptedModel) Then(steps ...Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

// Forever makes the model answer every call after the scripted steps with s.
func (m *ScriptedModel) Forever(s Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = &s
	return m
}

// Requests returns copies of all requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	for i, r := range m.requests {
		r.Messages = core.CloneMessages(r.Messages)
		out[i] = r
	}
	return out
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.Messages = core.CloneMessages(req.Messages)
	m.requests = append(m.requests, req)
	if len(m.steps) > 0 {
		s := m.steps[0]
		m.steps = m.steps[1:]
		return s
	}
	if m.repeat != nil {
		return *m.repeat
	}
	return Step{Err: ErrScriptExhausted}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	step := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		if final, ok := step.Turn.(Final); ok && req.Stream {
			for _, r := range final.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Delta: string(r)}:
				}
			}
		}

		finish := "stop"
		if _, ok := step.Turn.(ToolRequest); ok {
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Turn: step.Turn, FinishReason: finish}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// FinalStep is a convenience constructor for a Final step.
func FinalStep(text string) Step { return Step{Turn: Final{Text: text}} }

// ToolStep is a convenience constructor for a ToolRequest step.
func ToolStep(calls ...core.ToolCall) Step { return Step{Turn: ToolRequest{Calls: calls}} }

// ErrorStep is a convenience constructor for a failing step.
func ErrorStep(err error) Step { return Step{Err: err} }
