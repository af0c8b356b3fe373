package core

// StreamEvent is one item of the incremental output of a running
// orchestration. Concrete events implement the unexported marker, enabling a
// closed set that consumers can switch over exhaustively:
//
//	switch ev := ev.(type) {
//	case core.TextDelta:
//	case core.ToolStarted:
//	case core.ToolFinished:
//	case core.Completed:
//	case core.Failed:
//	}
//
// A stream is finite and not restartable: it ends with exactly one Completed
// or Failed event.
type StreamEvent interface{ isStreamEvent() }

// TextDelta carries a fragment of assistant text as produced by the model.
type TextDelta struct {
	Text string
}

// ToolStarted is emitted right before a tool call is dispatched.
type ToolStarted struct {
	CallID string
	Name   string
}

// ToolFinished is emitted after a tool call resolved (success or error).
type ToolFinished struct {
	CallID  string
	Name    string
	Summary string // truncated result text
	IsError bool
}

// Completed terminates a successful run.
type Completed struct {
	Text       string    // final assistant text
	Appended   []Message // messages appended to the thread by this run
	Iterations int       // model calls made
}

// Failed terminates a run that hit a terminal failure. Messages holds what
// the run produced up to the last complete cycle (starting with the user
// message); when Err is a persistence error it is the complete result of the
// run that could not be saved. Persisted reports whether Messages reached
// the thread store.
type Failed struct {
	Err        error
	Messages   []Message
	Persisted  bool
	Iterations int
}

// Reason returns the human readable failure reason.
func (f Failed) Reason() string {
	if f.Err == nil {
		return "unknown failure"
	}
	return f.Err.Error()
}

func (TextDelta) isStreamEvent()    {}
func (ToolStarted) isStreamEvent()  {}
func (ToolFinished) isStreamEvent() {}
func (Completed) isStreamEvent()    {}
func (Failed) isStreamEvent()       {}

// IsTerminal reports whether ev ends a stream.
func IsTerminal(ev StreamEvent) bool {
	switch ev.(type) {
	case Completed, Failed:
		return true
	default:
		return false
	}
}
