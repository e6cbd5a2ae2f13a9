package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

const maxPostLength = 280

func socialTool(client *http.Client, cfg config.SocialConfig) (tools.Descriptor, tools.Handler) {
	desc := tools.Descriptor{
		Name:        "post_update",
		Description: "Publish a short status update to the configured social service and return the post id.",
		Params: []tools.Param{
			{Name: "text", Type: "string", Description: "Status text to publish", Required: true},
		},
	}

	handler := func(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
		text := strings.TrimSpace(toString(args["text"]))
		if text == "" {
			return tools.Result{}, fmt.Errorf("text is required")
		}
		if len(text) > maxPostLength {
			return tools.Result{}, fmt.Errorf("text exceeds %d characters", maxPostLength)
		}
		if cfg.BaseURL == "" {
			return tools.Result{}, fmt.Errorf("social posting is not configured")
		}

		id, err := publishPost(ctx, client, cfg, text)
		if err != nil {
			return tools.Result{}, err
		}

		return tools.TextResult("post published: %s", id), nil
	}

	return desc, handler
}

func publishPost(ctx context.Context, client *http.Client, cfg config.SocialConfig, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post publish failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("post publish returned status %d", resp.StatusCode)
	}

	var body struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode publish response: %w", err)
	}

	id := body.ID
	if id == "" {
		id = body.Data.ID
	}
	if id == "" {
		return "", fmt.Errorf("publish response carried no post id")
	}

	return id, nil
}
