package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/metrics"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Planner decides, per conversational turn, whether to invoke a tool or
// answer with final text.
type Planner interface {
	Propose(ctx context.Context, messages []Message, available []tools.Descriptor) (Proposal, error)
}

// ProviderCreator creates providers from AI profiles
type ProviderCreator interface {
	NewProvider(profile config.AIProfile) (Provider, error)
}

// Adapter is the model-backed planner: it tries the configured profiles in
// priority order and translates the winning response into a Proposal. A tool
// call signalled by the model always wins over accompanying text. When every
// profile fails it defers to the fallback policy, if one is configured.
type Adapter struct {
	profiles        []config.AIProfile
	providerFactory ProviderCreator
	fallback        Planner
	systemPrompt    string
	maxTokens       int
	temperature     float64
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// AdapterConfig holds adapter configuration
type AdapterConfig struct {
	Profiles        []config.AIProfile
	ProviderFactory ProviderCreator // defaults to ProviderFactory
	Fallback        Planner         // optional degraded-mode policy
	SystemPrompt    string
	MaxTokens       int
	Temperature     float64
	Metrics         *metrics.Metrics // optional
	Logger          zerolog.Logger
}

// NewAdapter creates a model-backed planner
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if len(cfg.Profiles) == 0 && cfg.Fallback == nil {
		return nil, fmt.Errorf("at least one AI profile or a fallback planner is required")
	}

	factory := cfg.ProviderFactory
	if factory == nil {
		factory = &ProviderFactory{}
	}

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "You are a helpful assistant. Use the available tools when they fit the request; otherwise answer directly."
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	profiles := make([]config.AIProfile, len(cfg.Profiles))
	copy(profiles, cfg.Profiles)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	return &Adapter{
		profiles:        profiles,
		providerFactory: factory,
		fallback:        cfg.Fallback,
		systemPrompt:    cfg.SystemPrompt,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}, nil
}

// Propose asks the model backends for a decision, failing over across
// profiles and finally to the fallback policy.
func (a *Adapter) Propose(ctx context.Context, messages []Message, available []tools.Descriptor) (Proposal, error) {
	var lastErr error

	for _, profile := range a.profiles {
		provider, err := a.providerFactory.NewProvider(profile)
		if err != nil {
			a.logger.Warn().Str("profileId", profile.ID).Err(err).Msg("Failed to create provider")
			lastErr = err
			continue
		}

		response, err := provider.Complete(ctx, Request{
			Model:        profile.Model,
			Messages:     messages,
			Tools:        available,
			Temperature:  a.temperature,
			MaxTokens:    a.maxTokens,
			SystemPrompt: a.systemPrompt,
		})
		if err == nil {
			a.countCall(provider.Name(), "success")
			return proposalFromResponse(response)
		}

		lastErr = err
		a.countCall(provider.Name(), "error")
		a.logger.Warn().Str("profileId", profile.ID).Err(err).Msg("Provider call failed")

		if !IsRetryableError(err) {
			break
		}
	}

	if a.fallback != nil {
		if a.metrics != nil {
			a.metrics.PlannerFallbacksTotal.Inc()
		}
		a.logger.Info().Msg("Falling back to rule-based planner")
		return a.fallback.Propose(ctx, messages, available)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no AI profiles configured")
	}
	return Proposal{}, fmt.Errorf("all AI profiles failed: %w", lastErr)
}

func (a *Adapter) countCall(provider, status string) {
	if a.metrics == nil {
		return
	}
	a.metrics.PlannerCallsTotal.WithLabelValues(provider, status).Inc()
}

// proposalFromResponse prefers a tool call whenever the model signals one
func proposalFromResponse(response *Response) (Proposal, error) {
	if len(response.ToolCalls) > 0 {
		return NewToolCallProposal(response.ToolCalls[0]), nil
	}
	if response.Content != "" {
		return NewTextProposal(response.Content), nil
	}
	return Proposal{}, fmt.Errorf("model returned neither a tool call nor text")
}
