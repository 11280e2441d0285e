// Package reflectloop implements C8: the corrective re-prompt that follows a
// failed guardrail verification, and the conservative safe-fail answer that
// replaces a draft when correction doesn't help. Named reflectloop because
// "reflect" is a standard library package name.
package reflectloop

import (
	"context"
	"fmt"

	"github.com/flightline/aviation-assistant/internal/guardrail"
)

// Decider is the minimal C6 contract this package depends on: given a
// corrective prompt, produce a replacement answer. In this repository it is
// satisfied by internal/agent's reanswerAdapter, which wraps an llm.Decider's
// Decide method in a text-only exchange, so this package stays decoupled
// from internal/llm's Decision sum type.
type Decider interface {
	Reanswer(ctx context.Context, prompt string) (string, error)
}

// Reflect builds a corrective prompt from a failed verification, asks the
// decider for a replacement answer, and re-verifies it. It never returns an
// error from the verification side — a decider error is surfaced so the
// caller can fall straight through to SafeFail.
func Reflect(ctx context.Context, decider Decider, verification guardrail.Result, tracked guardrail.Tracked, policy guardrail.Policy) (string, guardrail.Result, error) {
	newAnswer, err := decider.Reanswer(ctx, verification.ReflectionPrompt)
	if err != nil {
		return "", guardrail.Result{}, fmt.Errorf("reflectloop: reanswer failed: %w", err)
	}
	newVerification := guardrail.Verify(newAnswer, tracked, policy)
	return newAnswer, newVerification, nil
}

// SafeFail builds the conservative fallback answer: it names the airport
// and tracked wind, states the mathematically verified crosswind, tells the
// user to independently verify, and embeds the audit trace id. It always
// returns a string and never fails.
func SafeFail(icao string, tracked guardrail.Tracked, truthKT float64, traceID string) string {
	windDesc := "the tracked wind"
	if tracked.WindDir != nil && tracked.WindSpeed != nil {
		windDesc = fmt.Sprintf("%03d° at %d kt", *tracked.WindDir, *tracked.WindSpeed)
	}
	return fmt.Sprintf(
		"I could not produce a verified crosswind figure for %s from the agent's draft. "+
			"Based on %s against the selected runway, the mathematically verified crosswind component is %s kt. "+
			"Please verify this independently before using it for a landing decision. (audit trace %s)",
		icao, windDesc, guardrail.FormatKT(truthKT), traceID,
	)
}
