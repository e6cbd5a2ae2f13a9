package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Provider is an interface for LLM API providers
type Provider interface {
	// Complete makes one model call
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Request contains the request parameters for a model call
type Request struct {
	Model        string
	Messages     []Message
	Tools        []tools.Descriptor
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Message is one entry of the conversation sent to the model
type Message struct {
	Role       string     `json:"role"` // "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-signalled tool invocation
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Response contains the model's answer
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ProviderFactory creates providers from AI profiles
type ProviderFactory struct{}

// NewProvider creates a provider for the profile's backend
func (f *ProviderFactory) NewProvider(profile config.AIProfile) (Provider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// IsRetryableError checks if a provider error is worth retrying on another
// profile. Permanent errors (auth, bad request) abort the failover chain.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
