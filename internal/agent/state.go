// Package agent implements C5: the agentic Think->Act->Observe->Decide loop
// that drives tool calls through C4, tracks the METAR and runway state they
// observe, and runs the finished draft through the guardrail pipeline
// (C7/C8) before returning a FinalResponse.
package agent

import (
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/llm"
	"github.com/flightline/aviation-assistant/internal/runway"
	"github.com/flightline/aviation-assistant/internal/tools"
	"github.com/flightline/aviation-assistant/internal/weather"
)

// AgentState is the explicit, mutable state threaded through one request's
// loop — passed by value into the verifier's view (guardrail.Tracked) so
// C7 can never see more than the latest tracked METAR and runway, per the
// "tracked state injected into the loop" design note.
type AgentState struct {
	Query         string
	Transcript    []llm.Step
	TrackedMetar  *weather.MetarRecord
	TrackedRunway *runway.Selection
	LoopIndex     int
	Terminal      bool
}

// track implements the OBSERVE step: it inspects a tool Result's payload
// and, when it recognizes a MetarResult or RunwayResult shape, updates the
// latest tracked value. Unrecognized payloads are left alone — the loop
// still records the raw observation in the transcript regardless.
func (s *AgentState) track(payload any) {
	switch p := payload.(type) {
	case tools.MetarResult:
		rec := p.Record
		s.TrackedMetar = &rec
	case tools.RunwayResult:
		sel := p.Selection
		s.TrackedRunway = &sel
	}
}

// llmTracked projects AgentState into the minimal view llm.Decider needs to
// ground a final answer in numbers actually observed this request.
func (s *AgentState) llmTracked() llm.Tracked {
	t := llm.Tracked{}
	if s.TrackedMetar != nil {
		t.HasMetar = true
		t.WindDir = s.TrackedMetar.WindDirection
		if s.TrackedMetar.WindSpeed != nil {
			t.WindSpeed = *s.TrackedMetar.WindSpeed
		}
	}
	if s.TrackedRunway != nil {
		t.HasRunway = true
		t.RunwayHeading = s.TrackedRunway.HeadingTrue
	}
	return t
}

// guardrailTracked projects AgentState into the minimal view C7 may read.
func (s *AgentState) guardrailTracked() guardrail.Tracked {
	t := guardrail.Tracked{}
	if s.TrackedMetar != nil {
		t.HasMetar = true
		t.WindDir = s.TrackedMetar.WindDirection
		t.WindSpeed = s.TrackedMetar.WindSpeed
		t.WindGust = s.TrackedMetar.WindGust
	}
	if s.TrackedRunway != nil {
		t.HasRunway = true
		t.RunwayHdg = s.TrackedRunway.HeadingTrue
		t.Variation = s.TrackedRunway.Variation
	}
	return t
}

// isLandingQuery reports whether both a METAR and a runway selection were
// tracked this request — the condition under which FinalResponse includes a
// landing block. The query text itself is not examined.
func (s *AgentState) isLandingQuery() bool {
	return s.TrackedRunway != nil && s.TrackedMetar != nil
}
