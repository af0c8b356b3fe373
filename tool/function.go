package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/toolchat/internal/util"
)

// Func is the signature of a plain Go function exposed as a tool.
type Func func(ctx context.Context, args map[string]any) (any, error)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds a JSON-Schema-like parameter specification (parameters)
//   - Applies schema defaults, then validates model supplied arguments
//   - Invokes the wrapped function with the already validated args
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is safe for
//	concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
	opts        FunctionToolOptions
}

// FunctionToolOptions configures a FunctionTool.
type FunctionToolOptions struct {
	// MapValidationError may replace the generic VALIDATION_ERROR of a failed
	// schema check. Returning nil keeps the generic error.
	MapValidationError func(err *ValidationError) error
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  util.BuildSchema(
//	    util.Param{Name: "a", Type: util.TypeNumber, Required: true},
//	    util.Param{Name: "b", Type: util.TypeNumber, Required: true},
//	  ),
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn Func,
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	if parameters == nil {
		parameters = util.BuildSchema()
	}
	var opts FunctionToolOptions
	for _, optFn := range optFns {
		optFn(&opts)
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		opts:        opts,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using reflection.
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn Func,
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the unique tool name used in tool descriptors and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call fills in schema defaults, validates the arguments and invokes the
// underlying function. The caller's args map is never mutated.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	args = util.ApplyDefaults(args, t.parameters)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		var ve *ValidationError
		if t.opts.MapValidationError != nil && errors.As(err, &ve) {
			if mapped := t.opts.MapValidationError(ve); mapped != nil {
				return nil, asToolError(t.name, mapped, CodeValidation)
			}
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		return nil, asToolError(t.name, err, CodeExecution)
	}

	return result, nil
}
