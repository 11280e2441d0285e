// Package llm implements the decider (C6): the agentic loop's Think step.
// Two backends share one Decision contract — a deterministic Pattern
// decider used for tests and when no LLM is configured, and an External
// backend that talks to a real chat-style LLM.
package llm

import "context"

// Kind discriminates the three shapes a Decision can take.
type Kind int

const (
	KindTool Kind = iota
	KindFinal
	KindAbort
)

// Decision is the sum type {Tool, Final, Abort} returned by Decide. Exactly
// one of ToolName/Text/Reason is meaningful, selected by Kind.
type Decision struct {
	Kind     Kind
	ToolName string
	ToolArgs map[string]any
	Text     string
	Reason   string
}

// Step is one (thought, action, observation) entry in a transcript, as
// tracked by the agentic loop.
type Step struct {
	Thought     string
	ToolName    string
	ToolArgs    map[string]any
	Observation string
}

// ToolDescriptor is the minimal shape of a tool the decider needs to know
// about to produce a tool-calling decision — name, description, and
// argument names, deliberately decoupled from tools.Tool so this package
// doesn't need to import internal/tools.
type ToolDescriptor struct {
	Name        string
	Description string
	ArgNames    []string
}

// Tracked is the subset of AgentState a decider may read to ground a final
// answer in numbers actually observed through tool calls this request —
// the latest tracked METAR wind and runway heading. It is plain data, not
// an import of internal/agent, so this package stays decoupled from the
// loop's own state representation (§9 "tracked state injected into the
// loop").
type Tracked struct {
	HasMetar      bool
	WindDir       *int
	WindSpeed     int
	HasRunway     bool
	RunwayHeading int
}

// Decider is the C6 contract: decide(state) -> Decision.
type Decider interface {
	Decide(ctx context.Context, query string, transcript []Step, catalog []ToolDescriptor, tracked Tracked) (Decision, error)
}
