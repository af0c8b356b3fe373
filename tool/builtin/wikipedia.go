package builtin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hupe1980/toolchat/internal/util"
	"github.com/hupe1980/toolchat/tool"
)

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// NewWikipediaSearch returns the wikipedia_search tool.
func NewWikipediaSearch(opts Options) *tool.FunctionTool {
	return tool.NewFunctionTool(
		WikipediaSearchName,
		"Search Wikipedia for information on a specific topic. Returns a summary from Wikipedia.",
		util.BuildSchema(
			util.Param{Name: "query", Type: util.TypeString, Description: "The topic to look up", Required: true},
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			title := url.PathEscape(strings.ReplaceAll(query, " ", "_"))

			var summary wikiSummary
			err := getJSON(ctx, opts, opts.WikipediaEndpoint+title, &summary)

			var httpErr *httpError
			if errors.As(err, &httpErr) {
				return fmt.Sprintf("Wikipedia page for '%s' not found.", query), nil
			}
			if err != nil {
				return nil, failure(WikipediaSearchName, "Wikipedia search failed: %v", err)
			}

			return fmt.Sprintf(
				"Wikipedia results for '%s':\n\nTitle: %s\n\nSummary: %s\n\nURL: %s",
				query,
				orDefault(summary.Title, "N/A"),
				orDefault(summary.Extract, "No summary available"),
				orDefault(summary.ContentURLs.Desktop.Page, "N/A"),
			), nil
		},
	)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
