package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flightline/aviation-assistant/internal/audit"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/llm"
	reflectloop "github.com/flightline/aviation-assistant/internal/reflect"
	"github.com/flightline/aviation-assistant/internal/tools"
)

// EventType discriminates the streaming variant's event payloads.
type EventType string

const (
	EventThought    EventType = "thought"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDraft      EventType = "draft"
	EventGuardrail  EventType = "guardrail"
	EventReflection EventType = "reflection"
	EventSafeFail   EventType = "safe_fail"
	EventFinal      EventType = "final"
)

// Event is one line of the run_stream sequence (§4.5). Ordering guarantee:
// thought < tool_call < tool_result per tool call; guardrail precedes
// reflection, whose payload carries the re-verification (no second guardrail
// event follows it); final is always last, and exactly one guardrail event is
// emitted per terminal path that reaches verification.
type Event struct {
	Type    EventType `json:"type"`
	TS      int64     `json:"ts"`
	Payload any       `json:"payload,omitempty"`
}

// NatsPublisher optionally fans streaming events out to a subject for any
// connected dashboard subscriber. A nil *nats.Conn disables this entirely.
type NatsPublisher struct {
	Conn *nats.Conn
}

func (p *NatsPublisher) publish(traceID string, ev Event) {
	if p == nil || p.Conn == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	// NATS publish failures are logged and never fail the request, the same
	// posture as an AuditWriteFailure.
	if err := p.Conn.Publish(fmt.Sprintf("aviation.events.%s", traceID), body); err != nil {
		fmt.Printf("agent: nats publish failed for trace %s: %v\n", traceID, err)
	}
}

// RunStream implements the streaming variant: run_stream(query) -> sequence
// of events, delivered over a buffered channel. The channel is closed after
// the terminal "final" event. On cancellation, a single "final" event with
// a canceled marker is emitted and no "guardrail" event is written.
func (a *Agent) RunStream(ctx context.Context, query string, pub *NatsPublisher) <-chan Event {
	out := make(chan Event, 32)
	traceID := audit.NewTraceID(time.Now().UnixMilli())

	cancel := func() {}
	if a.RequestDeadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.RequestDeadline)
	}

	go func() {
		defer close(out)
		defer cancel()

		emit := func(ev Event) {
			ev.TS = time.Now().UnixMilli()
			// Deliver whenever the buffer has room, even after ctx is done,
			// so the terminal canceled "final" event is not dropped; block
			// only while ctx is still live.
			select {
			case out <- ev:
			default:
				select {
				case out <- ev:
				case <-ctx.Done():
				}
			}
			pub.publish(traceID, ev)
		}

		state := &AgentState{Query: query}
		catalog := descriptors(a.Registry)

		draft, canceled := a.driveStreaming(ctx, state, catalog, emit)
		if canceled {
			emit(Event{Type: EventFinal, Payload: map[string]any{"canceled": true}})
			return
		}

		emit(Event{Type: EventDraft, Payload: draft})

		resp := a.finalizeStreaming(ctx, state, draft, traceID, emit)
		emit(Event{Type: EventFinal, Payload: resp})
	}()

	return out
}

func (a *Agent) driveStreaming(ctx context.Context, state *AgentState, catalog []llm.ToolDescriptor, emit func(Event)) (string, bool) {
	for {
		select {
		case <-ctx.Done():
			return "", true
		default:
		}

		decision, err := a.Decider.Decide(ctx, state.Query, state.Transcript, catalog, state.llmTracked())
		if err != nil {
			decision = llm.Decision{Kind: llm.KindFinal, Text: "I ran into a problem and can only give a partial answer."}
		}

		switch decision.Kind {
		case llm.KindTool:
			emit(Event{Type: EventThought, Payload: fmt.Sprintf("calling %s", decision.ToolName)})
			emit(Event{Type: EventToolCall, Payload: map[string]any{"tool": decision.ToolName, "args": decision.ToolArgs}})

			result := a.Registry.Dispatch(ctx, decision.ToolName, tools.Args(decision.ToolArgs))
			obs := result.Err
			if result.OK() {
				obs = fmt.Sprintf("%+v", result.Payload)
				state.track(result.Payload)
			}
			emit(Event{Type: EventToolResult, Payload: map[string]any{"tool": decision.ToolName, "ok": result.OK(), "observation": obs}})
			state.Transcript = append(state.Transcript, llm.Step{ToolName: decision.ToolName, ToolArgs: decision.ToolArgs, Observation: obs})

		case llm.KindAbort:
			return fmt.Sprintf("I couldn't complete this request: %s", decision.Reason), false

		default:
			return decision.Text, false
		}

		state.LoopIndex++
		if state.LoopIndex >= a.MaxLoops {
			return a.forceSummarize(ctx, state, catalog), false
		}
	}
}

func (a *Agent) finalizeStreaming(ctx context.Context, state *AgentState, draft string, traceID string, emit func(Event)) FinalResponse {
	tracked := state.guardrailTracked()
	verification := guardrail.Verify(draft, tracked, a.Policy)
	emit(Event{Type: EventGuardrail, Payload: verification})

	switch verification.Status {
	case guardrail.StatusPassed, guardrail.StatusSkipped:
		a.auditOutcome(ctx, traceID, audit.CategoryGuardrailPass, verification, draft, false)
		return a.respond(state, draft, verification.Status, false, verification)
	default:
		a.auditOutcome(ctx, traceID, audit.CategoryGuardrailFail, verification, draft, false)
		adapter := reanswerAdapter{decider: a.Decider, catalog: descriptors(a.Registry), tracked: state.llmTracked()}
		newAnswer, newVerification, err := reflectloop.Reflect(ctx, adapter, verification, tracked, a.Policy)
		emit(Event{Type: EventReflection, Payload: map[string]any{"answer": newAnswer, "verification": newVerification}})
		if err == nil && newVerification.Status == guardrail.StatusPassed {
			a.auditOutcome(ctx, traceID, audit.CategoryReflection, newVerification, newAnswer, false)
			return a.respond(state, newAnswer, guardrail.StatusPassed, false, newVerification)
		}

		truth := 0.0
		if verification.MathematicalTruth != nil {
			truth = *verification.MathematicalTruth
		}
		icao := ""
		if state.TrackedRunway != nil {
			icao = state.TrackedRunway.ICAO
		} else if state.TrackedMetar != nil {
			icao = state.TrackedMetar.Station
		}
		safeFailText := reflectloop.SafeFail(icao, tracked, truth, traceID)
		emit(Event{Type: EventSafeFail, Payload: safeFailText})
		a.auditOutcome(ctx, traceID, audit.CategorySafeFail, verification, safeFailText, true)
		return a.respond(state, safeFailText, guardrail.StatusFailed, true, verification)
	}
}
