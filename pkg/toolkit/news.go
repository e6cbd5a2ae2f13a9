package toolkit

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

func newsTool(client *http.Client, cfg config.NewsConfig) (tools.Descriptor, tools.Handler) {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 5
	}

	desc := tools.Descriptor{
		Name:        "news_search",
		Description: fmt.Sprintf("Search recent news headlines for a topic, returning up to %d items.", maxItems),
		Params: []tools.Param{
			{Name: "topic", Type: "string", Description: "Topic to search news for", Required: true},
			{Name: "limit", Type: "integer", Description: "Maximum number of headlines", Required: false},
		},
	}

	handler := func(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
		topic := strings.TrimSpace(toString(args["topic"]))
		if topic == "" {
			return tools.Result{}, fmt.Errorf("topic is required")
		}

		limit := toInt(args["limit"], maxItems)
		if limit <= 0 || limit > maxItems {
			limit = maxItems
		}

		items, err := fetchHeadlines(ctx, client, cfg.BaseURL, topic)
		if err != nil {
			return tools.Result{}, err
		}
		if len(items) == 0 {
			return tools.TextResult("no news found for %q", topic), nil
		}
		if len(items) > limit {
			items = items[:limit]
		}

		var b strings.Builder
		fmt.Fprintf(&b, "News for %q:", topic)
		for i, item := range items {
			fmt.Fprintf(&b, "\n%d. %s\n   %s", i+1, strings.TrimSpace(item.Title), strings.TrimSpace(item.Link))
		}

		return tools.TextResult("%s", b.String()), nil
	}

	return desc, handler
}

func fetchHeadlines(ctx context.Context, client *http.Client, baseURL, topic string) ([]rssItem, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		strings.TrimRight(baseURL, "/"),
		url.QueryEscape(topic),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news search returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	return feed.Channel.Items, nil
}
