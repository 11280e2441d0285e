package reflectloop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flightline/aviation-assistant/internal/guardrail"
)

func intp(v int) *int { return &v }

func fullTracked() guardrail.Tracked {
	return guardrail.Tracked{
		HasMetar:  true,
		WindDir:   intp(220),
		WindSpeed: intp(10),
		HasRunway: true,
		RunwayHdg: 260,
	}
}

type stubDecider struct {
	answer string
	err    error
}

func (s stubDecider) Reanswer(_ context.Context, _ string) (string, error) {
	return s.answer, s.err
}

func TestReflectProducesPassingVerificationOnCorrectedAnswer(t *testing.T) {
	policy := guardrail.Policy{ThresholdKT: 3.0}
	tracked := fullTracked()
	failed := guardrail.Verify("The crosswind is 20 knots.", tracked, policy)
	if failed.Status != guardrail.StatusFailed {
		t.Fatalf("setup: expected initial failure, got %v", failed.Status)
	}

	decider := stubDecider{answer: "The crosswind is approximately 6.4 kt."}
	newAnswer, newVerification, err := Reflect(context.Background(), decider, failed, tracked, policy)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if newVerification.Status != guardrail.StatusPassed {
		t.Fatalf("new verification status = %v, want passed", newVerification.Status)
	}
	if !strings.Contains(newAnswer, "6.4") {
		t.Fatalf("new answer = %q, want mention of 6.4", newAnswer)
	}
}

func TestReflectPropagatesDeciderError(t *testing.T) {
	policy := guardrail.Policy{ThresholdKT: 3.0}
	tracked := fullTracked()
	failed := guardrail.Verify("The crosswind is 20 knots.", tracked, policy)

	decider := stubDecider{err: errors.New("upstream unavailable")}
	_, _, err := Reflect(context.Background(), decider, failed, tracked, policy)
	if err == nil {
		t.Fatal("expected an error when the decider fails")
	}
}

func TestSafeFailNamesAirportWindTruthAndTraceID(t *testing.T) {
	tracked := fullTracked()
	text := SafeFail("KDEN", tracked, 6.43, "1700000000000-abcd1234")
	for _, want := range []string{"KDEN", "220", "10 kt", "6.43", "verify", "1700000000000-abcd1234"} {
		if !strings.Contains(text, want) {
			t.Errorf("safe-fail text %q missing %q", text, want)
		}
	}
}

func TestSafeFailNeverReturnsEmpty(t *testing.T) {
	text := SafeFail("KXXX", guardrail.Tracked{}, 0, "trace")
	if text == "" {
		t.Fatal("SafeFail must never return an empty string")
	}
}
