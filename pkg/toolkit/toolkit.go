// Package toolkit registers the built-in tools exposed by the gateway:
// arithmetic, repository lookup, encyclopedia summaries, news search, and
// post publishing. Each network-backed tool talks to its external
// collaborator over a bounded http.Client.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Options configures built-in tool registration.
type Options struct {
	GitHub config.GitHubConfig
	Wiki   config.WikiConfig
	News   config.NewsConfig
	Social config.SocialConfig

	// HTTPTimeout bounds each outbound collaborator call.
	HTTPTimeout time.Duration
}

// RegisterAll registers the built-in tools on the registry.
func RegisterAll(registry *tools.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}

	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 15 * time.Second
	}
	client := &http.Client{Timeout: opts.HTTPTimeout}

	register := func(desc tools.Descriptor, handler tools.Handler) error {
		if err := registry.Register(desc, handler); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", desc.Name, err)
		}
		return nil
	}

	if err := register(adderTool()); err != nil {
		return err
	}
	if err := register(githubTool(client, opts.GitHub)); err != nil {
		return err
	}
	if err := register(wikiTool(client, opts.Wiki)); err != nil {
		return err
	}
	if err := register(newsTool(client, opts.News)); err != nil {
		return err
	}
	if err := register(socialTool(client, opts.Social)); err != nil {
		return err
	}
	return nil
}

func adderTool() (tools.Descriptor, tools.Handler) {
	desc := tools.Descriptor{
		Name:        "adder",
		Description: "Add two numbers and return the sum.",
		Params: []tools.Param{
			{Name: "a", Type: "number", Description: "First operand", Required: true},
			{Name: "b", Type: "number", Description: "Second operand", Required: true},
		},
	}

	handler := func(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
		a, err := toFloat(args["a"])
		if err != nil {
			return tools.Result{}, fmt.Errorf("a: %w", err)
		}
		b, err := toFloat(args["b"])
		if err != nil {
			return tools.Result{}, fmt.Errorf("b: %w", err)
		}
		return tools.TextResult("%g + %g = %g", a, b, a+b), nil
	}

	return desc, handler
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return fallback
	}
}
