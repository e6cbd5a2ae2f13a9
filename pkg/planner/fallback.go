package planner

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/toolbridge/toolbridge/pkg/tools"
)

// RuleFallback is the degraded-mode planner: simple pattern matches over the
// latest user turn, used only when no model backend is reachable. It proposes
// a tool only when the user text names the operands itself; it never invents
// arguments.
type RuleFallback struct{}

// NewRuleFallback creates the rule-based fallback planner
func NewRuleFallback() *RuleFallback {
	return &RuleFallback{}
}

var (
	addPattern  = regexp.MustCompile(`(?i)\badd\s+(-?\d+(?:\.\d+)?)\s+(?:and|to|\+)\s+(-?\d+(?:\.\d+)?)`)
	wikiPattern = regexp.MustCompile(`(?i)\b(?:wikipedia|wiki)\b(?:\s+(?:about|on|for))?\s+(.+)`)
	newsPattern = regexp.MustCompile(`(?i)\bnews\b(?:\s+(?:about|on|for))?\s+(.+)`)
	repoPattern = regexp.MustCompile(`(?i)\brepo(?:sitory)?\s+([\w.-]+)/([\w.-]+)`)
	postPattern = regexp.MustCompile(`(?i)\bpost\s+(.+)`)
)

// Propose derives a proposal from the latest user message
func (f *RuleFallback) Propose(_ context.Context, messages []Message, available []tools.Descriptor) (Proposal, error) {
	text := latestUserText(messages)
	if text == "" {
		return NewTextProposal("I did not catch that. What would you like to do?"), nil
	}

	registered := make(map[string]bool, len(available))
	for _, desc := range available {
		registered[desc.Name] = true
	}

	if m := addPattern.FindStringSubmatch(text); m != nil && registered["adder"] {
		a, errA := strconv.ParseFloat(m[1], 64)
		b, errB := strconv.ParseFloat(m[2], 64)
		if errA == nil && errB == nil {
			return NewToolCallProposal(ToolCall{
				Name:      "adder",
				Arguments: map[string]interface{}{"a": a, "b": b},
			}), nil
		}
	}

	if m := repoPattern.FindStringSubmatch(text); m != nil && registered["github_repo"] {
		return NewToolCallProposal(ToolCall{
			Name:      "github_repo",
			Arguments: map[string]interface{}{"owner": m[1], "repo": m[2]},
		}), nil
	}

	if m := wikiPattern.FindStringSubmatch(text); m != nil && registered["wiki_summary"] {
		return NewToolCallProposal(ToolCall{
			Name:      "wiki_summary",
			Arguments: map[string]interface{}{"topic": trimTopic(m[1])},
		}), nil
	}

	if m := newsPattern.FindStringSubmatch(text); m != nil && registered["news_search"] {
		return NewToolCallProposal(ToolCall{
			Name:      "news_search",
			Arguments: map[string]interface{}{"topic": trimTopic(m[1])},
		}), nil
	}

	if m := postPattern.FindStringSubmatch(text); m != nil && registered["post_update"] {
		return NewToolCallProposal(ToolCall{
			Name:      "post_update",
			Arguments: map[string]interface{}{"text": trimTopic(m[1])},
		}), nil
	}

	return NewTextProposal("No model backend is available right now. I can still run tools directly, for example: \"add 2 and 3\", \"wikipedia Go (programming language)\", \"news about space\", or \"repo owner/name\"."), nil
}

func latestUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func trimTopic(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'.?!`)
}
