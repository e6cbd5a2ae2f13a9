package planner

// Proposal is the planner's per-turn decision: either a single tool call or a
// final text answer, never both and never neither. The zero value is invalid;
// use NewToolCallProposal or NewTextProposal.
type Proposal struct {
	kind     proposalKind
	toolCall ToolCall
	text     string
}

type proposalKind int

const (
	proposalInvalid proposalKind = iota
	proposalToolCall
	proposalText
)

// NewToolCallProposal wraps a tool invocation decision
func NewToolCallProposal(call ToolCall) Proposal {
	return Proposal{kind: proposalToolCall, toolCall: call}
}

// NewTextProposal wraps a final free-text answer
func NewTextProposal(text string) Proposal {
	return Proposal{kind: proposalText, text: text}
}

// ToolCall returns the proposed invocation when this is a tool-call proposal
func (p Proposal) ToolCall() (ToolCall, bool) {
	return p.toolCall, p.kind == proposalToolCall
}

// Text returns the final answer when this is a text proposal
func (p Proposal) Text() (string, bool) {
	return p.text, p.kind == proposalText
}

// Valid reports whether the proposal carries one of the two variants
func (p Proposal) Valid() bool {
	return p.kind != proposalInvalid
}
