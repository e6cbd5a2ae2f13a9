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

type repoInfo struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	OpenIssues  int    `json:"open_issues_count"`
	HTMLURL     string `json:"html_url"`
}

func githubTool(client *http.Client, cfg config.GitHubConfig) (tools.Descriptor, tools.Handler) {
	desc := tools.Descriptor{
		Name:        "github_repo",
		Description: "Look up a GitHub repository and return its description, stars, forks and open issue count.",
		Params: []tools.Param{
			{Name: "owner", Type: "string", Description: "Repository owner or organization", Required: true},
			{Name: "repo", Type: "string", Description: "Repository name", Required: true},
		},
	}

	handler := func(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
		owner := strings.TrimSpace(toString(args["owner"]))
		repo := strings.TrimSpace(toString(args["repo"]))
		if owner == "" || repo == "" {
			return tools.Result{}, fmt.Errorf("owner and repo are required")
		}

		info, err := fetchRepo(ctx, client, cfg, owner, repo)
		if err != nil {
			return tools.Result{}, err
		}

		description := info.Description
		if description == "" {
			description = "(no description)"
		}

		return tools.TextResult(
			"%s: %s\nstars: %d, forks: %d, open issues: %d\n%s",
			info.FullName, description, info.Stars, info.Forks, info.OpenIssues, info.HTMLURL,
		), nil
	}

	return desc, handler
}

func fetchRepo(ctx context.Context, client *http.Client, cfg config.GitHubConfig, owner, repo string) (*repoInfo, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s",
		strings.TrimRight(cfg.BaseURL, "/"),
		url.PathEscape(owner),
		url.PathEscape(repo),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repository lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("repository %s/%s not found", owner, repo)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("repository lookup returned status %d", resp.StatusCode)
	}

	var info repoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode repository response: %w", err)
	}

	return &info, nil
}
