package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/flightline/aviation-assistant/internal/audit"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/llm"
	reflectloop "github.com/flightline/aviation-assistant/internal/reflect"
	"github.com/flightline/aviation-assistant/internal/tools"
)

var tracer = otel.Tracer("aviation-assistant/agent")

// Agent drives the THINK->ACT->OBSERVE->DECIDE loop for one request at a
// time; it holds no per-request state itself, only shared, read-only
// collaborators constructed once at startup.
type Agent struct {
	Registry        *tools.Registry
	Decider         llm.Decider
	Sink            audit.Sink
	Policy          guardrail.Policy
	MaxLoops        int
	RequestDeadline time.Duration // 0 disables the per-request deadline
}

// New builds an Agent from its shared collaborators. requestDeadline is the
// REQUEST_DEADLINE_MS overall per-request ceiling (§6); 0 disables it.
func New(reg *tools.Registry, decider llm.Decider, sink audit.Sink, policy guardrail.Policy, maxLoops int, requestDeadline time.Duration) *Agent {
	if maxLoops <= 0 {
		maxLoops = 8
	}
	return &Agent{Registry: reg, Decider: decider, Sink: sink, Policy: policy, MaxLoops: maxLoops, RequestDeadline: requestDeadline}
}

// Run implements the C5 contract: run(query) -> FinalResponse. ctx is
// wrapped in a.RequestDeadline when set, so a request that overruns it
// terminates the loop the same way an explicitly cancelled ctx does: no
// forced summary is requested, and the returned canceled-marker response
// reports a skipped guardrail with no audit write.
func (a *Agent) Run(ctx context.Context, query string) (FinalResponse, error) {
	if a.RequestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.RequestDeadline)
		defer cancel()
	}

	state := &AgentState{Query: query}
	catalog := descriptors(a.Registry)
	traceID := audit.NewTraceID(time.Now().UnixMilli())

	draft, canceled := a.drive(ctx, state, catalog)
	if canceled {
		return FinalResponse{
			ResponseType:    "text",
			TextResponse:    "The request was canceled before an answer could be produced.",
			GuardrailStatus: guardrail.StatusSkipped,
			IsFallback:      false,
		}, nil
	}

	return a.finalize(ctx, state, draft, traceID), nil
}

// drive runs the loop body until a final answer is produced, MAX_LOOPS is
// reached, or ctx is done. It returns the draft text and whether the loop
// was cut short by cancellation.
func (a *Agent) drive(ctx context.Context, state *AgentState, catalog []llm.ToolDescriptor) (string, bool) {
	for {
		select {
		case <-ctx.Done():
			return "", true
		default:
		}

		spanCtx, span := tracer.Start(ctx, "agent.loop_iteration")
		decision, err := a.Decider.Decide(spanCtx, state.Query, state.Transcript, catalog, state.llmTracked())
		if err != nil {
			span.End()
			state.Transcript = append(state.Transcript, llm.Step{Observation: fmt.Sprintf("decider error: %v", err)})
			decision = llm.Decision{Kind: llm.KindFinal, Text: "I ran into a problem and can only give a partial answer."}
		}

		switch decision.Kind {
		case llm.KindTool:
			result := a.Registry.Dispatch(spanCtx, decision.ToolName, tools.Args(decision.ToolArgs))
			obs := result.Err
			if result.OK() {
				obs = fmt.Sprintf("%+v", result.Payload)
				state.track(result.Payload)
			}
			state.Transcript = append(state.Transcript, llm.Step{
				ToolName:    decision.ToolName,
				ToolArgs:    decision.ToolArgs,
				Observation: obs,
			})
			span.End()
		case llm.KindAbort:
			span.End()
			return fmt.Sprintf("I couldn't complete this request: %s", decision.Reason), false
		default: // KindFinal
			span.End()
			return decision.Text, false
		}

		state.LoopIndex++
		if state.LoopIndex >= a.MaxLoops {
			return a.forceSummarize(ctx, state, catalog), false
		}
	}
}

// forceSummarize asks the decider for a final answer "now", used when the
// loop has exhausted MAX_LOOPS iterations without a final_answer decision.
func (a *Agent) forceSummarize(ctx context.Context, state *AgentState, catalog []llm.ToolDescriptor) string {
	summarizeQuery := state.Query + " (summarize now with whatever information is available)"
	decision, err := a.Decider.Decide(ctx, summarizeQuery, state.Transcript, catalog, state.llmTracked())
	if err != nil || decision.Kind != llm.KindFinal {
		return "I wasn't able to finish gathering information in time; here is what I have so far."
	}
	return decision.Text
}

func descriptors(reg *tools.Registry) []llm.ToolDescriptor {
	described := reg.Describe()
	out := make([]llm.ToolDescriptor, 0, len(described))
	for _, t := range described {
		names := make([]string, 0, len(t.ArgSchema))
		for _, a := range t.ArgSchema {
			names = append(names, a.Name)
		}
		out = append(out, llm.ToolDescriptor{Name: t.Name, Description: t.Description, ArgNames: names})
	}
	return out
}

// reanswerAdapter lets Agent.Decider satisfy reflectloop.Decider without
// internal/reflect importing internal/llm's Decision sum type.
type reanswerAdapter struct {
	decider  llm.Decider
	catalog  []llm.ToolDescriptor
	tracked  llm.Tracked
}

func (r reanswerAdapter) Reanswer(ctx context.Context, prompt string) (string, error) {
	d, err := r.decider.Decide(ctx, prompt, nil, r.catalog, r.tracked)
	if err != nil {
		return "", err
	}
	if d.Kind != llm.KindFinal {
		return "", fmt.Errorf("agent: reflection expected a final answer, got kind %v", d.Kind)
	}
	return d.Text, nil
}
