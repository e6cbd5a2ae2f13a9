package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolbridge/toolbridge/pkg/planner"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

type stubPlanner struct {
	proposal planner.Proposal
	err      error
}

func (p *stubPlanner) Propose(_ context.Context, _ []planner.Message, _ []tools.Descriptor) (planner.Proposal, error) {
	return p.proposal, p.err
}

type stubDispatcher struct {
	descriptors []tools.Descriptor
	result      tools.Result
	err         error
	calls       []string
}

func (d *stubDispatcher) ListTools(_ context.Context) ([]tools.Descriptor, error) {
	return d.descriptors, nil
}

func (d *stubDispatcher) CallTool(_ context.Context, name string, _ map[string]interface{}) (tools.Result, error) {
	d.calls = append(d.calls, name)
	if d.err != nil {
		return tools.Result{}, d.err
	}
	return d.result, nil
}

func adderDescriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        "adder",
		Description: "Adds two numbers",
		Params: []tools.Param{
			{Name: "a", Type: "number", Required: true},
			{Name: "b", Type: "number", Required: true},
		},
	}
}

func newTestLoop(t *testing.T, p planner.Planner, d Dispatcher) *Loop {
	loop, err := NewLoop(LoopConfig{
		Planner:    p,
		Dispatcher: d,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return loop
}

func TestTurn(t *testing.T) {
	t.Run("should run a proposed tool call and record three turns", func(t *testing.T) {
		dispatcher := &stubDispatcher{
			descriptors: []tools.Descriptor{adderDescriptor()},
			result:      tools.TextResult("2 + 3 = 5"),
		}
		p := &stubPlanner{proposal: planner.NewToolCallProposal(planner.ToolCall{
			Name:      "adder",
			Arguments: map[string]interface{}{"a": 2.0, "b": 3.0},
		})}

		loop := newTestLoop(t, p, dispatcher)
		history := NewHistory()

		answer, err := loop.Turn(context.Background(), history, "add 2 and 3")
		require.NoError(t, err)
		assert.Contains(t, answer, "5")

		turns := history.Turns()
		require.Len(t, turns, 3)
		assert.Equal(t, RoleUser, turns[0].Role)
		assert.Equal(t, "add 2 and 3", turns[0].Text())
		assert.Equal(t, RoleModel, turns[1].Role)
		require.NotNil(t, turns[1].ToolCall)
		assert.Equal(t, "adder", turns[1].ToolCall.Name)
		assert.Equal(t, RoleModel, turns[2].Role)
		assert.Contains(t, turns[2].Text(), "5")

		assert.Equal(t, []string{"adder"}, dispatcher.calls)
	})

	t.Run("should append a final text answer as one model turn", func(t *testing.T) {
		dispatcher := &stubDispatcher{descriptors: []tools.Descriptor{adderDescriptor()}}
		p := &stubPlanner{proposal: planner.NewTextProposal("hello there")}

		loop := newTestLoop(t, p, dispatcher)
		history := NewHistory()

		answer, err := loop.Turn(context.Background(), history, "hi")
		require.NoError(t, err)
		assert.Equal(t, "hello there", answer)

		turns := history.Turns()
		require.Len(t, turns, 2)
		assert.Equal(t, RoleUser, turns[0].Role)
		assert.Equal(t, RoleModel, turns[1].Role)
		assert.Empty(t, dispatcher.calls)
	})

	t.Run("should fail with no response and append no model turn", func(t *testing.T) {
		dispatcher := &stubDispatcher{descriptors: []tools.Descriptor{adderDescriptor()}}
		p := &stubPlanner{proposal: planner.Proposal{}}

		loop := newTestLoop(t, p, dispatcher)
		history := NewHistory()

		_, err := loop.Turn(context.Background(), history, "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response")

		turns := history.Turns()
		require.Len(t, turns, 1)
		assert.Equal(t, RoleUser, turns[0].Role)
	})

	t.Run("should surface invalid proposed arguments as an error result", func(t *testing.T) {
		dispatcher := &stubDispatcher{descriptors: []tools.Descriptor{adderDescriptor()}}
		p := &stubPlanner{proposal: planner.NewToolCallProposal(planner.ToolCall{
			Name:      "adder",
			Arguments: map[string]interface{}{"a": 2.0},
		})}

		loop := newTestLoop(t, p, dispatcher)
		history := NewHistory()

		answer, err := loop.Turn(context.Background(), history, "add")
		require.NoError(t, err)
		assert.Contains(t, answer, "missing required argument")
		assert.Empty(t, dispatcher.calls, "invalid arguments must not cross the wire")
	})

	t.Run("should convert a dispatch failure to an error result", func(t *testing.T) {
		dispatcher := &stubDispatcher{
			descriptors: []tools.Descriptor{adderDescriptor()},
			err:         fmt.Errorf("gateway unreachable"),
		}
		p := &stubPlanner{proposal: planner.NewToolCallProposal(planner.ToolCall{
			Name:      "adder",
			Arguments: map[string]interface{}{"a": 1.0, "b": 2.0},
		})}

		loop := newTestLoop(t, p, dispatcher)
		history := NewHistory()

		answer, err := loop.Turn(context.Background(), history, "add 1 and 2")
		require.NoError(t, err)
		assert.Contains(t, answer, "gateway unreachable")
	})

	t.Run("should propagate planner errors without a model turn", func(t *testing.T) {
		dispatcher := &stubDispatcher{descriptors: []tools.Descriptor{adderDescriptor()}}
		p := &stubPlanner{err: fmt.Errorf("all AI profiles failed")}

		loop := newTestLoop(t, p, dispatcher)
		history := NewHistory()

		_, err := loop.Turn(context.Background(), history, "hi")
		require.Error(t, err)
		assert.Equal(t, 1, history.Len())
	})
}

func TestHistoryMessages(t *testing.T) {
	t.Run("should render a tool round trip in wire shape", func(t *testing.T) {
		history := NewHistory()
		history.Append(Turn{Role: RoleUser, Parts: []tools.Part{{Type: tools.PartText, Text: "add 2 and 3"}}})
		history.Append(Turn{Role: RoleModel, ToolCall: &planner.ToolCall{ID: "t1", Name: "adder"}})
		history.Append(Turn{Role: RoleModel, Parts: []tools.Part{{Type: tools.PartText, Text: "2 + 3 = 5"}}})
		history.Append(Turn{Role: RoleModel, Parts: []tools.Part{{Type: tools.PartText, Text: "anything else?"}}})

		messages := history.Messages()
		require.Len(t, messages, 4)
		assert.Equal(t, "user", messages[0].Role)
		assert.Equal(t, "assistant", messages[1].Role)
		require.Len(t, messages[1].ToolCalls, 1)
		assert.Equal(t, "tool", messages[2].Role)
		assert.Equal(t, "t1", messages[2].ToolCallID)
		assert.Equal(t, "assistant", messages[3].Role)
		assert.Empty(t, messages[3].ToolCallID)
	})
}
