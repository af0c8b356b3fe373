package core

import "fmt"

// CancelledResultText is the error payload used to resolve tool calls left
// open by a cancelled run.
const CancelledResultText = "cancelled"

// ValidateHistory checks the structural invariant of a conversation: every
// tool message answers a call of the directly preceding assistant tool
// request, no call is answered twice, and every call is answered before the
// next non-tool message (or the end of the history). The first violation is
// returned as *MalformedHistoryError.
func ValidateHistory(msgs []Message) error {
	var (
		open     bool
		pending  map[string]bool // call id -> resolved
		callIDs  []string
		openedAt int
	)

	unresolved := func() string {
		for _, id := range callIDs {
			if !pending[id] {
				return id
			}
		}
		return ""
	}

	for i, m := range msgs {
		if !m.Role.Valid() {
			return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("invalid role %d", int(m.Role))}
		}

		if m.Role == RoleTool {
			if !open {
				return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("orphaned tool result %q", m.ToolCallID)}
			}
			resolved, known := pending[m.ToolCallID]
			if !known {
				return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("tool_call_id %q does not match any call of message %d", m.ToolCallID, openedAt)}
			}
			if resolved {
				return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("duplicate result for tool call %q", m.ToolCallID)}
			}
			pending[m.ToolCallID] = true
			continue
		}

		if m.ToolCallID != "" {
			return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("%s message carries tool_call_id", m.Role)}
		}

		if open {
			if id := unresolved(); id != "" {
				return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("tool call %q of message %d has no result", id, openedAt)}
			}
			open = false
		}

		if len(m.ToolCalls) == 0 {
			continue
		}
		if m.Role != RoleAssistant {
			return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("%s message carries tool calls", m.Role)}
		}

		open, openedAt = true, i
		pending = make(map[string]bool, len(m.ToolCalls))
		callIDs = callIDs[:0]
		for _, c := range m.ToolCalls {
			if c.ID == "" {
				return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("tool call %q has empty id", c.Name)}
			}
			if _, dup := pending[c.ID]; dup {
				return &MalformedHistoryError{Index: i, Reason: fmt.Sprintf("duplicate tool call id %q", c.ID)}
			}
			pending[c.ID] = false
			callIDs = append(callIDs, c.ID)
		}
	}

	if open {
		if id := unresolved(); id != "" {
			return &MalformedHistoryError{Index: len(msgs), Reason: fmt.Sprintf("tool call %q of message %d has no result", id, openedAt)}
		}
	}

	return nil
}

// CloseDanglingToolCalls returns a copy of msgs in which every call of the
// trailing assistant tool request that has no result yet is answered with a
// "cancelled" error payload, in call order. Histories without a trailing
// open request are returned unchanged (copied).
func CloseDanglingToolCalls(msgs []Message) []Message {
	out := CloneMessages(msgs)

	idx := -1
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == RoleTool {
			continue
		}
		if out[i].HasToolCalls() {
			idx = i
		}
		break
	}
	if idx < 0 {
		return out
	}

	answered := make(map[string]bool)
	for _, m := range out[idx+1:] {
		answered[m.ToolCallID] = true
	}
	for _, c := range out[idx].ToolCalls {
		if answered[c.ID] {
			continue
		}
		out = append(out, ToolResult{CallID: c.ID, Name: c.Name, Err: CancelledResultText}.Message())
	}
	return out
}
