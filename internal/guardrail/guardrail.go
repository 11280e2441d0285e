// Package guardrail implements C7: the post-hoc verifier that re-derives a
// draft answer's crosswind claim from tracked METAR and runway state and
// decides whether the claim is trustworthy.
package guardrail

import (
	"github.com/flightline/aviation-assistant/internal/geometry"
	"github.com/shopspring/decimal"
)

// Status is the three-way outcome of a verification pass.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Tracked is the subset of agent state the verifier is allowed to read: the
// latest METAR wind observed this request and the latest selected runway
// heading. These are the only inputs the guardrail may use (§ tracked
// state), so this type intentionally carries nothing else.
type Tracked struct {
	HasMetar  bool
	WindDir   *int
	WindSpeed *int
	WindGust  *int
	HasRunway bool
	RunwayHdg int
	Variation *int // station magnetic variation, nil if unknown
}

// Policy bundles the configurable knobs the verify procedure consults.
type Policy struct {
	ThresholdKT               float64
	UseGustForVerification    bool
	MagneticCorrectionEnabled bool
}

// Result is the VerificationResult data type: the full record of one
// verify() call, independent of status.
type Result struct {
	Status            Status
	AgentClaim        *float64
	MathematicalTruth *float64
	Discrepancy       *float64
	Reason            string
	ReflectionPrompt  string
}

// Verify implements the C7 contract: verify(answer_text, tracked_metar?,
// tracked_runway_hdg?) -> VerificationResult.
func Verify(answerText string, tracked Tracked, policy Policy) Result {
	if !tracked.HasMetar {
		return skip("no METAR has been observed this request")
	}
	if !tracked.HasRunway {
		return skip("no runway has been selected this request")
	}
	if tracked.WindDir == nil {
		return skip("tracked wind direction is variable or unknown")
	}
	if tracked.WindSpeed == nil {
		return skip("tracked wind speed is unknown")
	}
	claim, ok := geometry.ExtractClaim(answerText)
	if !ok {
		return skip("no crosswind claim found in the draft answer")
	}

	speed := float64(*tracked.WindSpeed)
	if policy.UseGustForVerification && tracked.WindGust != nil && *tracked.WindGust > *tracked.WindSpeed {
		speed = float64(*tracked.WindGust)
	}

	runwayHdg := tracked.RunwayHdg
	if policy.MagneticCorrectionEnabled {
		runwayHdg = geometry.MagneticCorrection(runwayHdg, tracked.Variation)
	}

	delta := geometry.AngleBetween(*tracked.WindDir, runwayHdg)
	truth := geometry.Crosswind(speed, delta)
	discrepancy := absFloat(claim - truth)

	result := Result{
		Status:            StatusPassed,
		AgentClaim:        &claim,
		MathematicalTruth: &truth,
		Discrepancy:       &discrepancy,
	}

	if discrepancy <= policy.ThresholdKT {
		result.Reason = "claim within tolerance of the recomputed crosswind"
		return result
	}

	result.Status = StatusFailed
	result.Reason = "claim exceeds the discrepancy tolerance"
	result.ReflectionPrompt = reflectionPrompt(*tracked.WindDir, speed, runwayHdg, delta, truth)
	return result
}

func skip(reason string) Result {
	return Result{Status: StatusSkipped, Reason: reason}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// FormatKT renders a knots value to 2 decimal places, half-away-from-zero,
// matching how a pilot reads a rounded knots figure — deliberately via
// shopspring/decimal rather than strconv.FormatFloat, which can surface
// binary-float artifacts like "7.4000000000000004" in an audit trail.
func FormatKT(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}

func reflectionPrompt(windDir int, speed float64, runwayHdg int, delta, truth float64) string {
	return "The stated crosswind does not match the recomputed value. " +
		"Wind direction " + decimal.NewFromInt(int64(windDir)).String() + "°, speed " + FormatKT(speed) + " kt, " +
		"runway heading " + decimal.NewFromInt(int64(runwayHdg)).String() + "°, angle Δ=" + FormatKT(delta) + "°. " +
		"crosswind = |V·sin(Δ)| = " + FormatKT(truth) + " kt. " +
		"Restate the crosswind component as " + FormatKT(truth) + " kt."
}
