// Package builtin provides the stock tools of the chat agent: web, Wikipedia
// and news search, a calculator and a stock quote lookup.
//
// Every tool translates its own failures (network errors, bad status codes,
// malformed payloads, domain errors) into *tool.ToolError values so the
// registry turns them into error payloads the model can react to. HTTP calls
// honour the dispatch context, are bounded by Options.Timeout and never retry.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/toolchat/tool"
)

// Tool names exposed to the model.
const (
	WebSearchName       = "custom_web_search"
	WikipediaSearchName = "wikipedia_search"
	NewsSearchName      = "news_search"
	StockPriceName      = "get_stock_price"
	CalculatorName      = "calculator"
)

// Default endpoints.
const (
	DefaultSearchEndpoint     = "https://www.googleapis.com/customsearch/v1"
	DefaultWikipediaEndpoint  = "https://en.wikipedia.org/api/rest_v1/page/summary/"
	DefaultStockQuoteEndpoint = "https://www.alphavantage.co/query"
)

// Options configures the builtin tools.
type Options struct {
	// HTTPClient is shared by all network tools. When nil a client with
	// Timeout is created.
	HTTPClient *http.Client
	// Timeout bounds each HTTP call (default 10s).
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string

	// SearchAPIKey and SearchEngineID configure the Google Programmable
	// Search JSON API used by web and news search.
	SearchAPIKey   string
	SearchEngineID string
	SearchEndpoint string

	WikipediaEndpoint string

	// StockAPIKey is the Alpha Vantage key.
	StockAPIKey        string
	StockQuoteEndpoint string
}

func defaultOptions() Options {
	return Options{
		Timeout:            10 * time.Second,
		UserAgent:          "toolchat/1.0",
		SearchEndpoint:     DefaultSearchEndpoint,
		WikipediaEndpoint:  DefaultWikipediaEndpoint,
		StockAPIKey:        "demo",
		StockQuoteEndpoint: DefaultStockQuoteEndpoint,
	}
}

func newOptions(optFns ...func(o *Options)) Options {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return opts
}

// Tools returns the builtin tools in their canonical order.
func Tools(optFns ...func(o *Options)) []tool.Tool {
	opts := newOptions(optFns...)
	return []tool.Tool{
		NewWebSearch(opts),
		NewWikipediaSearch(opts),
		NewNewsSearch(opts),
		NewStockPrice(opts),
		NewCalculator(),
	}
}

// Register adds all builtin tools to reg.
func Register(reg *tool.Registry, optFns ...func(o *Options)) error {
	return reg.Register(Tools(optFns...)...)
}

// httpError is returned for non-2xx responses.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// getJSON issues a GET request bounded by the client timeout and ctx and
// decodes a 2xx JSON body into out. Non-2xx responses yield *httpError.
func getJSON(ctx context.Context, opts Options, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func failure(name, format string, args ...any) *tool.ToolError {
	return tool.NewToolError(name, fmt.Sprintf(format, args...), tool.CodeExecution)
}
