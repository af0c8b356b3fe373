// Package tool implements the tool registry: named callable operations with a
// declared parameter schema, dispatched with independent failure isolation.
//
// Dispatch never fails past its boundary. Unknown tools, schema violations,
// handler errors and even panics are converted into ToolResult error payloads
// so that one bad tool call cannot abort a conversation.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/internal/util"
)

// Tool defines the interface for callable operations exposed to the model.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a proper JSON schema for parameters
//   - Translate their own failures (network, malformed responses, domain
//     errors) into errors rather than panicking
//   - Honour ctx for any blocking I/O
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Call executes the tool with already parsed arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError.
const (
	CodeNotFound   = "TOOL_NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
	CodeDomain     = "DOMAIN_ERROR"
)

// ToolError represents errors that occur during tool dispatch or execution.
// Message is what ends up in the tool-role history message.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Is maps codes onto the core taxonomy.
func (e *ToolError) Is(target error) bool {
	switch target {
	case core.ErrToolNotFound:
		return e.Code == CodeNotFound
	case core.ErrToolExecution:
		return e.Code != CodeNotFound
	default:
		return false
	}
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// asToolError normalizes any error into a *ToolError with the given fallback code.
func asToolError(tool string, err error, code string) *ToolError {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	return &ToolError{Tool: tool, Message: err.Error(), Code: code}
}
