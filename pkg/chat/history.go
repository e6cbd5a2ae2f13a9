package chat

import (
	"time"

	"github.com/toolbridge/toolbridge/pkg/planner"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

// Role tags one side of the conversation
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one conversation entry. A model turn either carries content parts
// or records a tool invocation the planner proposed.
type Turn struct {
	Role      Role              `json:"role"`
	Parts     []tools.Part      `json:"parts,omitempty"`
	ToolCall  *planner.ToolCall `json:"tool_call,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Text joins the turn's text parts
func (t Turn) Text() string {
	return tools.Result{Parts: t.Parts}.Text()
}

// History is the ordered, append-only conversation record. It is owned by
// one orchestration loop and is not safe for concurrent use.
type History struct {
	turns []Turn
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{}
}

// Append adds the newest turn
func (h *History) Append(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	h.turns = append(h.turns, turn)
}

// Turns returns a copy of the history
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns
func (h *History) Len() int {
	return len(h.turns)
}

// Messages renders the history in the planner's wire shape. A model turn
// recording a tool call becomes an assistant tool-call message; the model
// turn that follows it carries the tool's output and is sent back as a tool
// result.
func (h *History) Messages() []planner.Message {
	messages := make([]planner.Message, 0, len(h.turns))
	var pendingCallID string

	for _, turn := range h.turns {
		switch {
		case turn.Role == RoleUser:
			pendingCallID = ""
			messages = append(messages, planner.Message{Role: "user", Content: turn.Text()})

		case turn.ToolCall != nil:
			pendingCallID = turn.ToolCall.ID
			messages = append(messages, planner.Message{
				Role:      "assistant",
				ToolCalls: []planner.ToolCall{*turn.ToolCall},
			})

		case pendingCallID != "":
			messages = append(messages, planner.Message{
				Role:       "tool",
				Content:    turn.Text(),
				ToolCallID: pendingCallID,
			})
			pendingCallID = ""

		default:
			messages = append(messages, planner.Message{Role: "assistant", Content: turn.Text()})
		}
	}

	return messages
}
