package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolResult_Text(t *testing.T) {
	c := ToolCall{ID: "c1", Name: "calculator"}

	testCases := []struct {
		name string
		res  ToolResult
		want string
	}{
		{name: "string verbatim", res: NewToolSuccess(c, "Wikipedia results for 'Go'"), want: "Wikipedia results for 'Go'"},
		{name: "number", res: NewToolSuccess(c, 3.5), want: "3.5"},
		{name: "struct", res: NewToolSuccess(c, struct {
			Result float64 `json:"result"`
		}{84}), want: `{"result":84}`},
		{name: "bytes", res: NewToolSuccess(c, []byte("raw")), want: "raw"},
		{name: "nil", res: NewToolSuccess(c, nil), want: ""},
		{name: "error", res: NewToolFailure(c, errors.New("Division by zero is not allowed")), want: `{"error":"Division by zero is not allowed"}`},
		{name: "nil error", res: NewToolFailure(c, nil), want: `{"error":"unknown error"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.res.Text())
		})
	}
}

func TestToolResult_Message(t *testing.T) {
	res := NewToolFailure(ToolCall{ID: "c1", Name: "news_search"}, errors.New("News search failed: timeout"))

	msg := res.Message()
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.Equal(t, "news_search", msg.Name)
	assert.True(t, msg.IsError)
	assert.Equal(t, res.Text(), msg.Content)
}

func TestToolResult_Summary(t *testing.T) {
	res := NewToolSuccess(ToolCall{ID: "c1"}, strings.Repeat("ä", 10))

	assert.Equal(t, strings.Repeat("ä", 10), res.Summary(0))
	assert.Equal(t, strings.Repeat("ä", 10), res.Summary(10))
	assert.Equal(t, strings.Repeat("ä", 4)+"…", res.Summary(4))
}

func TestErrors_Classification(t *testing.T) {
	base := errors.New("connection reset")

	gw := NewGatewayError("openai", base)
	assert.ErrorIs(t, gw, ErrGateway)
	assert.ErrorIs(t, gw, base)
	assert.Equal(t, "model gateway error [openai]: connection reset", gw.Error())
	assert.Equal(t, gw, NewGatewayError("other", gw))
	wrapped := fmt.Errorf("wrapped: %w", gw)
	assert.Equal(t, wrapped, NewGatewayError("other", wrapped))
	assert.Nil(t, NewGatewayError("openai", nil))

	pe := NewPersistenceError("save", "t1", base)
	assert.ErrorIs(t, pe, ErrPersistence)
	assert.ErrorIs(t, pe, base)
	assert.Equal(t, `persistence error (save thread "t1"): connection reset`, pe.Error())
	assert.Equal(t, "persistence error (list): connection reset", NewPersistenceError("list", "", base).Error())

	var le error = &LimitExceededError{Limit: 10}
	assert.ErrorIs(t, le, ErrOrchestrationLimit)
	assert.NotErrorIs(t, le, ErrGateway)
}

func TestIterationLimiter(t *testing.T) {
	l := NewIterationLimiter(2)
	assert.NoError(t, l.Increment())
	assert.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())

	err := l.Increment()
	var le *LimitExceededError
	assert.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Limit)
	assert.Equal(t, 2, l.Count())

	unlimited := NewIterationLimiter(0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(Completed{}))
	assert.True(t, IsTerminal(Failed{}))
	assert.False(t, IsTerminal(TextDelta{}))
	assert.False(t, IsTerminal(ToolStarted{}))
	assert.False(t, IsTerminal(ToolFinished{}))
	assert.Equal(t, "unknown failure", Failed{}.Reason())
}
