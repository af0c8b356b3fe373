package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hupe1980/toolchat/core"
	"github.com/hupe1980/toolchat/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, optFns ...func(o *Options)) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, optFns...))
	return reg
}

func dispatch(reg *tool.Registry, name string, args map[string]any) core.ToolResult {
	return reg.Dispatch(context.Background(), core.ToolCall{ID: "call_1", Name: name, Arguments: args})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRegister_CanonicalOrder(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Equal(t, []string{
		WebSearchName,
		WikipediaSearchName,
		NewsSearchName,
		StockPriceName,
		CalculatorName,
	}, reg.Names())

	for _, d := range reg.Descriptors() {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.Equal(t, "object", d.Parameters["type"], d.Name)
	}
}

func TestCalculator(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("add", func(t *testing.T) {
		res := dispatch(reg, CalculatorName, map[string]any{"first_num": 2.0, "second_num": 3.0, "operation": "add"})
		require.False(t, res.IsError())
		assert.JSONEq(t, `{"first_num":2,"second_num":3,"operation":"add","result":5}`, res.Text())
	})

	t.Run("div", func(t *testing.T) {
		res := dispatch(reg, CalculatorName, map[string]any{"first_num": 9.0, "second_num": 4.0, "operation": "div"})
		require.False(t, res.IsError())
		assert.Equal(t, CalculationResult{FirstNum: 9, SecondNum: 4, Operation: "div", Result: 2.25}, res.Value)
	})

	t.Run("division by zero", func(t *testing.T) {
		var res core.ToolResult
		assert.NotPanics(t, func() {
			res = dispatch(reg, CalculatorName, map[string]any{"first_num": 10.0, "second_num": 0.0, "operation": "div"})
		})
		require.True(t, res.IsError())
		assert.Equal(t, "Division by zero is not allowed", res.Err)
		assert.JSONEq(t, `{"error":"Division by zero is not allowed"}`, res.Text())
	})

	t.Run("integer arguments", func(t *testing.T) {
		res := dispatch(reg, CalculatorName, map[string]any{"first_num": 6, "second_num": 7, "operation": "mul"})
		require.False(t, res.IsError())
		assert.Equal(t, 42.0, res.Value.(CalculationResult).Result)
	})

	t.Run("operation outside enum", func(t *testing.T) {
		res := dispatch(reg, CalculatorName, map[string]any{"first_num": 1.0, "second_num": 1.0, "operation": "pow"})
		require.True(t, res.IsError())
		assert.Equal(t, `{"error":"Unsupported operation 'pow'"}`, res.Text())
	})

	t.Run("missing operation", func(t *testing.T) {
		res := dispatch(reg, CalculatorName, map[string]any{"first_num": 1.0, "second_num": 1.0})
		require.True(t, res.IsError())
		assert.Contains(t, res.Err, "required field is missing")
	})

	t.Run("schema advertises operations", func(t *testing.T) {
		calc, ok := reg.Get(CalculatorName)
		require.True(t, ok)
		props := calc.Parameters()["properties"].(map[string]any)
		assert.Equal(t, []string{"add", "sub", "mul", "div"}, props["operation"].(map[string]any)["enum"])
		assert.Equal(t, []string{"first_num", "second_num", "operation"}, calc.Parameters()["required"])
	})
}

func TestCalculate_UnsupportedOperation(t *testing.T) {
	_, err := Calculate(1, 2, "x")

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "Unsupported operation 'x'", toolErr.Message)
	assert.Equal(t, tool.CodeDomain, toolErr.Code)

	res, err := Calculate(5, 3, "sub")
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Result)
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		assert.Equal(t, "golang", q.Get("q"))
		assert.Equal(t, "2", q.Get("num"))
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"title": "The Go Programming Language", "link": "https://go.dev/", "snippet": "Build simple, secure, scalable systems."},
			{"title": "Go (programming language)", "link": "https://en.wikipedia.org/wiki/Go"},
		}})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.SearchEndpoint = srv.URL
		o.SearchAPIKey = "key"
		o.SearchEngineID = "cx"
	})

	res := dispatch(reg, WebSearchName, map[string]any{"query": "golang", "num_results": 2})
	require.False(t, res.IsError(), res.Err)

	want := "Web search results for 'golang':\n\n" +
		"1. The Go Programming Language\n" +
		"   URL: https://go.dev/\n" +
		"   Description: Build simple, secure, scalable systems.\n\n" +
		"2. Go (programming language)\n" +
		"   URL: https://en.wikipedia.org/wiki/Go\n" +
		"\n"
	assert.Equal(t, want, res.Text())
}

func TestWebSearch_DefaultNumResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("num"))
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.SearchEndpoint = srv.URL
		o.SearchAPIKey = "key"
		o.SearchEngineID = "cx"
	})

	res := dispatch(reg, WebSearchName, map[string]any{"query": "nothing"})
	require.False(t, res.IsError(), res.Err)
	assert.Equal(t, "Web search results for 'nothing':\n\n", res.Text())
}

func TestWebSearch_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": map[string]any{"message": "quota"}})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.SearchEndpoint = srv.URL
		o.SearchAPIKey = "key"
		o.SearchEngineID = "cx"
	})

	res := dispatch(reg, WebSearchName, map[string]any{"query": "golang"})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "Search failed: unexpected status 403")
}

func TestWebSearch_NotConfigured(t *testing.T) {
	reg := newTestRegistry(t)

	res := dispatch(reg, WebSearchName, map[string]any{"query": "golang"})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "not configured")
}

func TestWebSearch_RejectsOutOfRangeCount(t *testing.T) {
	reg := newTestRegistry(t)

	res := dispatch(reg, WebSearchName, map[string]any{"query": "golang", "num_results": 1e300})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "Search failed: num_results")
}

func TestNewsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AI news today", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"title": "AI breakthrough", "link": "https://news.example.com/ai/1"},
		}})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.SearchEndpoint = srv.URL
		o.SearchAPIKey = "key"
		o.SearchEngineID = "cx"
	})

	res := dispatch(reg, NewsSearchName, map[string]any{"topic": "AI"})
	require.False(t, res.IsError(), res.Err)
	assert.Equal(t, "Recent news about 'AI':\n\n"+
		"1. AI breakthrough\n"+
		"   Source: news.example.com\n"+
		"   URL: https://news.example.com/ai/1\n\n", res.Text())
}

func TestNewsSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.SearchEndpoint = srv.URL
		o.SearchAPIKey = "key"
		o.SearchEngineID = "cx"
	})

	res := dispatch(reg, NewsSearchName, map[string]any{"topic": "nothing"})
	require.False(t, res.IsError())
	assert.Equal(t, "No recent news found about 'nothing'", res.Text())
}

func TestWikipediaSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Alan_Turing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"title": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"title":   "Alan Turing",
			"extract": "English mathematician.",
			"content_urls": map[string]any{
				"desktop": map[string]any{"page": "https://en.wikipedia.org/wiki/Alan_Turing"},
			},
		})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) { o.WikipediaEndpoint = srv.URL + "/" })

	res := dispatch(reg, WikipediaSearchName, map[string]any{"query": "Alan Turing"})
	require.False(t, res.IsError(), res.Err)
	assert.Equal(t, "Wikipedia results for 'Alan Turing':\n\n"+
		"Title: Alan Turing\n\n"+
		"Summary: English mathematician.\n\n"+
		"URL: https://en.wikipedia.org/wiki/Alan_Turing", res.Text())

	res = dispatch(reg, WikipediaSearchName, map[string]any{"query": "Nope"})
	require.False(t, res.IsError())
	assert.Equal(t, "Wikipedia page for 'Nope' not found.", res.Text())
}

func TestWikipediaSearch_Fallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) { o.WikipediaEndpoint = srv.URL + "/" })

	res := dispatch(reg, WikipediaSearchName, map[string]any{"query": "x"})
	assert.Equal(t, "Wikipedia results for 'x':\n\nTitle: N/A\n\nSummary: No summary available\n\nURL: N/A", res.Text())
}

func TestStockPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GLOBAL_QUOTE", q.Get("function"))
		assert.Equal(t, "secret", q.Get("apikey"))
		if q.Get("symbol") != "AAPL" {
			writeJSON(w, http.StatusOK, map[string]any{"Global Quote": map[string]any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"Global Quote": map[string]any{
			"01. symbol":         "AAPL",
			"05. price":          "189.9800",
			"09. change":         "1.2300",
			"10. change percent": "0.6516%",
		}})
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.StockQuoteEndpoint = srv.URL
		o.StockAPIKey = "secret"
	})

	res := dispatch(reg, StockPriceName, map[string]any{"symbol": "AAPL"})
	require.False(t, res.IsError(), res.Err)
	assert.JSONEq(t, `{"symbol":"AAPL","price":"189.9800","change":"1.2300","change_percent":"0.6516%"}`, res.Text())

	res = dispatch(reg, StockPriceName, map[string]any{"symbol": "ZZZZ"})
	require.True(t, res.IsError())
	assert.JSONEq(t, `{"error":"Stock symbol 'ZZZZ' not found or API limit reached"}`, res.Text())
}

func TestStockPrice_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	reg := newTestRegistry(t, func(o *Options) {
		o.StockQuoteEndpoint = srv.URL
		o.Timeout = 20 * time.Millisecond
	})

	res := dispatch(reg, StockPriceName, map[string]any{"symbol": "AAPL"})
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "Stock price lookup failed")
}

func TestSourceOf(t *testing.T) {
	assert.Equal(t, "example.com", sourceOf("https://example.com/a/b"))
	assert.Equal(t, "not a url", sourceOf("not a url"))
}
