package agent

import (
	"context"

	"github.com/flightline/aviation-assistant/internal/audit"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	reflectloop "github.com/flightline/aviation-assistant/internal/reflect"
)

// finalize runs the RESPOND step (§4.5): the guardrail pipeline on the
// draft answer, followed by reflection and safe-fail as the terminal
// decision table requires. It writes one audit record per outcome reached:
// a passed/skipped draft or a successful reflection write just the one
// terminal record, but a failed initial verification is itself audited
// before reflection is attempted, ahead of whatever reflection or
// safe-fail record follows.
func (a *Agent) finalize(ctx context.Context, state *AgentState, draft string, traceID string) FinalResponse {
	tracked := state.guardrailTracked()
	verification := guardrail.Verify(draft, tracked, a.Policy)

	switch verification.Status {
	case guardrail.StatusPassed:
		a.auditOutcome(ctx, traceID, audit.CategoryGuardrailPass, verification, draft, false)
		return a.respond(state, draft, guardrail.StatusPassed, false, verification)

	case guardrail.StatusSkipped:
		a.auditOutcome(ctx, traceID, audit.CategoryGuardrailPass, verification, draft, false)
		return a.respond(state, draft, guardrail.StatusSkipped, false, verification)

	default: // failed
		a.auditOutcome(ctx, traceID, audit.CategoryGuardrailFail, verification, draft, false)
		adapter := reanswerAdapter{decider: a.Decider, catalog: descriptors(a.Registry), tracked: state.llmTracked()}
		newAnswer, newVerification, err := reflectloop.Reflect(ctx, adapter, verification, tracked, a.Policy)
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
		a.auditOutcome(ctx, traceID, audit.CategorySafeFail, verification, safeFailText, true)
		return a.respond(state, safeFailText, guardrail.StatusFailed, true, verification)
	}
}

func (a *Agent) respond(state *AgentState, text string, status guardrail.Status, isFallback bool, verification guardrail.Result) FinalResponse {
	details := map[string]any{
		"verification": verification,
		"loops":        state.LoopIndex,
		"tool_calls":   len(state.Transcript),
	}

	resp := FinalResponse{
		ResponseType:    "text",
		TextResponse:    text,
		GuardrailStatus: status,
		IsFallback:      isFallback,
		Details:         details,
	}

	if state.TrackedMetar != nil {
		mp := metarPayload(*state.TrackedMetar)
		resp.Metar = &mp
		resp.ResponseType = "metar"
	}
	if state.isLandingQuery() {
		lp := landingPayload(*state.TrackedMetar, state.TrackedRunway.HeadingTrue, state.TrackedRunway.RunwayID)
		resp.Landing = &lp
	}

	return resp
}

func (a *Agent) auditOutcome(ctx context.Context, traceID string, category audit.Category, verification guardrail.Result, answer string, isFallback bool) {
	if a.Sink == nil {
		return
	}
	rec := audit.NewRecord(traceID, category, map[string]any{
		"answer":      answer,
		"status":      verification.Status,
		"is_fallback": isFallback,
	})
	rec.Events = []audit.Event{{Type: string(category), TS: rec.Timestamp, Payload: map[string]any{
		"agent_claim":        verification.AgentClaim,
		"mathematical_truth": verification.MathematicalTruth,
		"discrepancy":        verification.Discrepancy,
		"reason":             verification.Reason,
	}}}
	_ = a.Sink.Write(ctx, rec) // AuditWriteFailure: logged by the sink, never fails the request
}
