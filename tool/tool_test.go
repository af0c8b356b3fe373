package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSchema() map[string]any {
	return util.BuildSchema(
		util.Param{Name: "a", Type: util.TypeNumber, Required: true},
		util.Param{Name: "b", Type: util.TypeNumber, Default: 1.0},
	)
}

func sumFn(_ context.Context, args map[string]any) (any, error) {
	return args["a"].(float64) + args["b"].(float64), nil
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	ft := NewFunctionTool("sum", "Add numbers", sumSchema(), sumFn)

	res, err := ft.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res)
}

func TestFunctionTool_AppliesDefaults(t *testing.T) {
	ft := NewFunctionTool("sum", "Add numbers", sumSchema(), sumFn)

	args := map[string]any{"a": 2.0}
	res, err := ft.Call(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res)
	assert.NotContains(t, args, "b", "caller map must not be mutated")
}

func TestFunctionTool_ValidationError(t *testing.T) {
	ft := NewFunctionTool("sum", "Add numbers", sumSchema(), sumFn)

	_, err := ft.Call(context.Background(), map[string]any{"a": "two"})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Contains(t, toolErr.Message, "parameter validation failed")
	assert.ErrorIs(t, err, core.ErrToolExecution)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	ft := NewFunctionTool("fail", "Always fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := ft.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	ft := NewFunctionTool("div", "Divide", nil, func(context.Context, map[string]any) (any, error) {
		return nil, NewToolError("div", "Division by zero is not allowed", CodeDomain)
	})

	_, err := ft.Call(context.Background(), nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeDomain, toolErr.Code)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Search query"`
		Limit int    `json:"limit,omitempty"`
	}
	ft := NewFunctionToolFromStruct("search", "Search", args{}, func(context.Context, map[string]any) (any, error) {
		return "ok", nil
	})

	props := ft.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")

	_, err := ft.Call(context.Background(), map[string]any{})
	assert.Error(t, err, "query is required")
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("sum", "Add", sumSchema(), sumFn))

	err := r.RegisterFunc("sum", "Add again", sumSchema(), sumFn)
	assert.ErrorContains(t, err, "already registered")
	assert.Equal(t, 1, r.Len())

	assert.Error(t, r.Register(NewFunctionTool("", "nameless", nil, sumFn)))
	assert.Panics(t, func() { r.MustRegister(NewFunctionTool("sum", "dup", nil, sumFn)) })
}

func TestRegistry_DescriptorsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.RegisterFunc(name, "desc "+name, nil, sumFn))
	}

	descs := r.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, "zeta", descs[0].Name)
	assert.Equal(t, "alpha", descs[1].Name)
	assert.Equal(t, "mid", descs[2].Name)
	assert.Equal(t, "desc alpha", descs[1].Description)
	assert.Equal(t, "object", descs[0].Parameters["type"])
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())
}

func TestRegistry_DispatchSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("sum", "Add", sumSchema(), sumFn))

	res := r.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "sum", Arguments: map[string]any{"a": 1.5, "b": 2.0}})
	assert.False(t, res.IsError())
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, "sum", res.Name)
	assert.Equal(t, "3.5", res.Text())
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	r := NewRegistry()

	res := r.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "frobnicate"})
	require.True(t, res.IsError())
	assert.Equal(t, "c1", res.CallID)
	assert.Contains(t, res.Err, "frobnicate")
	assert.Contains(t, res.Text(), "frobnicate")

	msg := res.Message()
	assert.Equal(t, core.RoleTool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.True(t, msg.IsError)
}

func TestRegistry_DispatchRecoversPanics(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("explode", "Panics", nil, func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}))

	var res core.ToolResult
	assert.NotPanics(t, func() {
		res = r.Dispatch(context.Background(), core.ToolCall{ID: "c9", Name: "explode"})
	})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "kaboom")
	assert.Equal(t, "c9", res.CallID)
}

func TestRegistry_DispatchDomainErrorKeepsMessage(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("div", "Divide", nil, func(context.Context, map[string]any) (any, error) {
		return nil, NewToolError("div", "Division by zero is not allowed", CodeDomain)
	}))

	res := r.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "div"})
	assert.Equal(t, `{"error":"Division by zero is not allowed"}`, res.Text())
}

func TestRegistry_DispatchValidationFailureIsNonFatal(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("sum", "Add", sumSchema(), sumFn))

	res := r.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "sum", Arguments: map[string]any{}})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "parameter validation failed")
}

func TestRegistry_CallTimeout(t *testing.T) {
	r := NewRegistry(func(o *RegistryOptions) { o.CallTimeout = 20 * time.Millisecond })
	require.NoError(t, r.RegisterFunc("slow", "Waits for ctx", nil, func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	res := r.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "slow"})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, context.DeadlineExceeded.Error())
}

func TestRegistry_ConcurrentDispatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("sum", "Add", sumSchema(), sumFn))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := r.Dispatch(context.Background(), core.ToolCall{
				ID:        fmt.Sprintf("c%d", i),
				Name:      "sum",
				Arguments: map[string]any{"a": float64(i), "b": 0.0},
			})
			assert.False(t, res.IsError())
			assert.Equal(t, fmt.Sprintf("c%d", i), res.CallID)
		}(i)
	}
	wg.Wait()
}
