package chat

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/toolbridge/toolbridge/pkg/planner"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Dispatcher is the loop's path to tool execution, normally the wire client
// speaking to a gateway session.
type Dispatcher interface {
	ListTools(ctx context.Context) ([]tools.Descriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (tools.Result, error)
}

// Loop drives one conversational turn at a time: append the user's message,
// ask the planner, execute a proposed tool call through the dispatcher, and
// surface the final text.
type Loop struct {
	planner     planner.Planner
	dispatcher  Dispatcher
	store       *TranscriptStore
	key         string
	logger      zerolog.Logger
	descriptors []tools.Descriptor
}

// LoopConfig holds loop configuration
type LoopConfig struct {
	Planner    planner.Planner
	Dispatcher Dispatcher
	Store      *TranscriptStore // optional transcript persistence
	Key        string           // transcript key, required when Store is set
	Logger     zerolog.Logger
}

// NewLoop creates an orchestration loop
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Store != nil && cfg.Key == "" {
		return nil, fmt.Errorf("transcript key is required when a store is set")
	}

	return &Loop{
		planner:    cfg.Planner,
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		key:        cfg.Key,
		logger:     cfg.Logger,
	}, nil
}

// Turn runs one conversational turn and returns the assistant's text. The
// user turn is always appended first; exactly one of the tool path, the text
// path, or the failure path follows, and a failed turn appends no model turn.
func (l *Loop) Turn(ctx context.Context, history *History, userText string) (string, error) {
	l.append(history, Turn{Role: RoleUser, Parts: []tools.Part{{Type: tools.PartText, Text: userText}}})

	available, err := l.availableTools(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to discover tools: %w", err)
	}

	proposal, err := l.planner.Propose(ctx, history.Messages(), available)
	if err != nil {
		return "", fmt.Errorf("planner failed: %w", err)
	}

	if call, ok := proposal.ToolCall(); ok {
		return l.runToolCall(ctx, history, available, call)
	}

	if text, ok := proposal.Text(); ok {
		l.append(history, Turn{Role: RoleModel, Parts: []tools.Part{{Type: tools.PartText, Text: text}}})
		return text, nil
	}

	return "", fmt.Errorf("no response from planner")
}

func (l *Loop) runToolCall(ctx context.Context, history *History, available []tools.Descriptor, call planner.ToolCall) (string, error) {
	if call.ID == "" {
		call.ID, _ = gonanoid.New()
	}

	l.logger.Debug().Str("tool", call.Name).Msg("Planner proposed tool call")
	l.append(history, Turn{Role: RoleModel, ToolCall: &call})

	var result tools.Result
	if err := validateCall(available, call); err != nil {
		result = tools.ErrorResult("%s", err)
	} else {
		var dispatchErr error
		result, dispatchErr = l.dispatcher.CallTool(ctx, call.Name, call.Arguments)
		if dispatchErr != nil {
			result = tools.ErrorResult("tool call failed: %v", dispatchErr)
		}
	}

	text := result.Text()
	l.append(history, Turn{Role: RoleModel, Parts: result.Parts})
	return text, nil
}

// validateCall checks the proposed arguments against the advertised
// descriptor before anything crosses the wire.
func validateCall(available []tools.Descriptor, call planner.ToolCall) error {
	var desc *tools.Descriptor
	for i := range available {
		if available[i].Name == call.Name {
			desc = &available[i]
			break
		}
	}
	if desc == nil {
		return fmt.Errorf("unknown tool: %s", call.Name)
	}

	known := make(map[string]tools.Param, len(desc.Params))
	for _, param := range desc.Params {
		known[param.Name] = param
		if param.Required {
			if _, ok := call.Arguments[param.Name]; !ok {
				return fmt.Errorf("missing required argument %q for %s", param.Name, call.Name)
			}
		}
	}

	for name, value := range call.Arguments {
		param, ok := known[name]
		if !ok {
			return fmt.Errorf("unexpected argument %q for %s", name, call.Name)
		}
		if !typeMatches(param.Type, value) {
			return fmt.Errorf("argument %q for %s must be a %s", name, call.Name, param.Type)
		}
	}

	return nil
}

func typeMatches(paramType string, value interface{}) bool {
	switch paramType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}

func (l *Loop) availableTools(ctx context.Context) ([]tools.Descriptor, error) {
	if l.descriptors != nil {
		return l.descriptors, nil
	}

	descs, err := l.dispatcher.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	l.descriptors = descs
	return descs, nil
}

func (l *Loop) append(history *History, turn Turn) {
	history.Append(turn)
	if l.store == nil {
		return
	}
	if err := l.store.Append(l.key, turn); err != nil {
		l.logger.Warn().Err(err).Str("key", l.key).Msg("Failed to persist turn")
	}
}
