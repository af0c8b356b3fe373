package builtin

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hupe1980/toolchat/internal/util"
	"github.com/hupe1980/toolchat/tool"
)

// StockQuote is the success payload of the get_stock_price tool.
type StockQuote struct {
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"change_percent"`
}

type globalQuoteResponse struct {
	Quote map[string]string `json:"Global Quote"`
}

// NewStockPrice returns the get_stock_price tool backed by the Alpha Vantage
// GLOBAL_QUOTE endpoint.
func NewStockPrice(opts Options) *tool.FunctionTool {
	return tool.NewFunctionTool(
		StockPriceName,
		"Fetch latest stock price for a given symbol (e.g. 'AAPL', 'TSLA') using Alpha Vantage.",
		util.BuildSchema(
			util.Param{Name: "symbol", Type: util.TypeString, Description: "Ticker symbol", Required: true},
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			symbol, _ := args["symbol"].(string)

			q := url.Values{}
			q.Set("function", "GLOBAL_QUOTE")
			q.Set("symbol", symbol)
			q.Set("apikey", opts.StockAPIKey)

			var resp globalQuoteResponse
			if err := getJSON(ctx, opts, opts.StockQuoteEndpoint+"?"+q.Encode(), &resp); err != nil {
				return nil, failure(StockPriceName, "Stock price lookup failed: %v", err)
			}
			if len(resp.Quote) == 0 {
				return nil, tool.NewToolError(StockPriceName,
					fmt.Sprintf("Stock symbol '%s' not found or API limit reached", symbol), tool.CodeDomain)
			}

			return StockQuote{
				Symbol:        symbol,
				Price:         orDefault(resp.Quote["05. price"], "N/A"),
				Change:        orDefault(resp.Quote["09. change"], "N/A"),
				ChangePercent: orDefault(resp.Quote["10. change percent"], "N/A"),
			}, nil
		},
	)
}
