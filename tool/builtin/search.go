package builtin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hupe1980/toolchat/internal/util"
	"github.com/hupe1980/toolchat/tool"
)

const maxSearchResults = 10

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// searchClient queries the Google Programmable Search JSON API.
type searchClient struct {
	opts Options
}

func (c searchClient) search(ctx context.Context, query string, num int) ([]searchItem, error) {
	if c.opts.SearchAPIKey == "" || c.opts.SearchEngineID == "" {
		return nil, errors.New("search API key or engine id not configured")
	}

	num = clamp(num, 1, maxSearchResults)

	q := url.Values{}
	q.Set("key", c.opts.SearchAPIKey)
	q.Set("cx", c.opts.SearchEngineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))

	var resp searchResponse
	if err := getJSON(ctx, c.opts, c.opts.SearchEndpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Items) > num {
		resp.Items = resp.Items[:num]
	}
	return resp.Items, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewWebSearch returns the custom_web_search tool.
func NewWebSearch(opts Options) *tool.FunctionTool {
	client := searchClient{opts: opts}

	return tool.NewFunctionTool(
		WebSearchName,
		"Perform a custom web search using Google search API. Returns summarized results from top websites.",
		util.BuildSchema(
			util.Param{Name: "query", Type: util.TypeString, Description: "The search query", Required: true},
			util.Param{Name: "num_results", Type: util.TypeNumber, Description: "Number of results to return", Default: 3},
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			num, err := util.ToInt(args["num_results"])
			if err != nil {
				return nil, failure(WebSearchName, "Search failed: num_results: %v", err)
			}

			items, err := client.search(ctx, query, num)
			if err != nil {
				return nil, failure(WebSearchName, "Search failed: %v", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Web search results for '%s':\n\n", query)
			for i, it := range items {
				fmt.Fprintf(&b, "%d. %s\n", i+1, it.Title)
				fmt.Fprintf(&b, "   URL: %s\n", it.Link)
				if it.Snippet != "" {
					fmt.Fprintf(&b, "   Description: %s\n\n", it.Snippet)
				} else {
					b.WriteString("\n")
				}
			}
			return b.String(), nil
		},
	)
}

// NewNewsSearch returns the news_search tool.
func NewNewsSearch(opts Options) *tool.FunctionTool {
	client := searchClient{opts: opts}

	return tool.NewFunctionTool(
		NewsSearchName,
		"Search for recent news articles on a specific topic.",
		util.BuildSchema(
			util.Param{Name: "topic", Type: util.TypeString, Description: "The news topic", Required: true},
			util.Param{Name: "num_articles", Type: util.TypeNumber, Description: "Number of articles to return", Default: 3},
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			topic, _ := args["topic"].(string)
			num, err := util.ToInt(args["num_articles"])
			if err != nil {
				return nil, failure(NewsSearchName, "News search failed: num_articles: %v", err)
			}

			items, err := client.search(ctx, topic+" news today", num)
			if err != nil {
				return nil, failure(NewsSearchName, "News search failed: %v", err)
			}
			if len(items) == 0 {
				return fmt.Sprintf("No recent news found about '%s'", topic), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Recent news about '%s':\n\n", topic)
			for i, it := range items {
				fmt.Fprintf(&b, "%d. %s\n", i+1, it.Title)
				fmt.Fprintf(&b, "   Source: %s\n", sourceOf(it.Link))
				fmt.Fprintf(&b, "   URL: %s\n\n", it.Link)
			}
			return b.String(), nil
		},
	)
}

// sourceOf returns the host of rawURL, or rawURL itself when it has none.
func sourceOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
