package builtin

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolchat/internal/util"
	"github.com/hupe1980/toolchat/tool"
)

// CalculationResult is the success payload of the calculator tool.
type CalculationResult struct {
	FirstNum  float64 `json:"first_num"`
	SecondNum float64 `json:"second_num"`
	Operation string  `json:"operation"`
	Result    float64 `json:"result"`
}

// CalculatorArgs declares the calculator parameters.
type CalculatorArgs struct {
	FirstNum  float64 `json:"first_num" description:"First operand"`
	SecondNum float64 `json:"second_num" description:"Second operand"`
	Operation string  `json:"operation" description:"Arithmetic operation" enum:"add,sub,mul,div"`
}

// NewCalculator returns the calculator tool. Division by zero and unknown
// operations are reported as error payloads. The operation enum is advertised
// to the model; a value outside it resolves like any other unsupported
// operation.
func NewCalculator() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		CalculatorName,
		"Perform a basic arithmetic operation on two numbers. Supported operations: add, sub, mul, div",
		CalculatorArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			a, err := util.ToFloat(args["first_num"])
			if err != nil {
				return nil, tool.NewToolError(CalculatorName, err.Error(), tool.CodeValidation)
			}
			b, err := util.ToFloat(args["second_num"])
			if err != nil {
				return nil, tool.NewToolError(CalculatorName, err.Error(), tool.CodeValidation)
			}
			op, _ := args["operation"].(string)

			return Calculate(a, b, op)
		},
		func(o *tool.FunctionToolOptions) {
			o.MapValidationError = func(ve *tool.ValidationError) error {
				if ve.Field == "operation" && ve.Value != nil {
					return unsupportedOperation(fmt.Sprint(ve.Value))
				}
				return nil
			}
		},
	)
}

// Calculate applies op to a and b.
func Calculate(a, b float64, op string) (CalculationResult, error) {
	var result float64
	switch op {
	case "add":
		result = a + b
	case "sub":
		result = a - b
	case "mul":
		result = a * b
	case "div":
		if b == 0 {
			return CalculationResult{}, tool.NewToolError(CalculatorName, "Division by zero is not allowed", tool.CodeDomain)
		}
		result = a / b
	default:
		return CalculationResult{}, unsupportedOperation(op)
	}

	return CalculationResult{FirstNum: a, SecondNum: b, Operation: op, Result: result}, nil
}

func unsupportedOperation(op string) *tool.ToolError {
	return tool.NewToolError(CalculatorName, fmt.Sprintf("Unsupported operation '%s'", op), tool.CodeDomain)
}
