package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/pkg/tools"
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

func wikiTool(client *http.Client, cfg config.WikiConfig) (tools.Descriptor, tools.Handler) {
	desc := tools.Descriptor{
		Name:        "wiki_summary",
		Description: "Fetch a short encyclopedia summary for a topic.",
		Params: []tools.Param{
			{Name: "topic", Type: "string", Description: "Topic or article title", Required: true},
		},
	}

	handler := func(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
		topic := strings.TrimSpace(toString(args["topic"]))
		if topic == "" {
			return tools.Result{}, fmt.Errorf("topic is required")
		}

		// The summary endpoint wants underscores in article titles
		title := strings.ReplaceAll(topic, " ", "_")
		endpoint := fmt.Sprintf("%s/page/summary/%s",
			strings.TrimRight(cfg.BaseURL, "/"),
			url.PathEscape(title),
		)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return tools.Result{}, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return tools.Result{}, fmt.Errorf("summary lookup failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return tools.Result{}, fmt.Errorf("no article found for %q", topic)
		}
		if resp.StatusCode != http.StatusOK {
			return tools.Result{}, fmt.Errorf("summary lookup returned status %d", resp.StatusCode)
		}

		var summary wikiSummary
		if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
			return tools.Result{}, fmt.Errorf("failed to decode summary response: %w", err)
		}

		text := fmt.Sprintf("%s\n%s", summary.Title, summary.Extract)
		if page := summary.ContentURLs.Desktop.Page; page != "" {
			text += "\n" + page
		}

		return tools.TextResult("%s", text), nil
	}

	return desc, handler
}
