// Package audit provides the append-only structured event sink (C9).
//
// Grounded on internal/storage's connection-wrapper shape (OpenClickHouse /
// OpenPostgres): a small config struct, a constructor that validates the
// connection, and a typed wrapper around the underlying client.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies an AuditEvent's outcome.
type Category string

const (
	CategoryGuardrailPass Category = "guardrail_pass"
	CategoryGuardrailFail Category = "guardrail_fail"
	CategoryReflection    Category = "reflection"
	CategorySafeFail      Category = "safe_fail"

	// CategoryFetch is a supplemental category for C2's side-channel fetch
	// traces (§4.2): these aren't guardrail outcomes, but the spec still
	// directs them to the same append-only sink, so they get their own
	// category rather than being force-fit into one of the four terminal
	// guardrail categories.
	CategoryFetch Category = "fetch"
)

// Event is one entry in an AuditEvent's events list.
type Event struct {
	Type    string         `json:"type"`
	TS      int64          `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Record is an AuditEvent: a self-contained, append-only audit trail entry.
type Record struct {
	TraceID    string         `json:"trace_id"`
	Category   Category       `json:"category"`
	Timestamp  int64          `json:"timestamp"`
	Context    map[string]any `json:"context,omitempty"`
	Events     []Event        `json:"events,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
}

// NewTraceID returns a trace id of the form "<unix-ms>-<8 hex chars>", per
// the §3 AuditEvent shape. The random suffix is the first 8 hex characters
// of a fresh google/uuid, which already gives the pack's own well-tested
// source of randomness rather than hand-rolling one over crypto/rand.
func NewTraceID(nowMS int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", nowMS, suffix)
}

// NewRecord builds a Record stamped with the current trace id and time.
func NewRecord(traceID string, category Category, context map[string]any) Record {
	return Record{
		TraceID:   traceID,
		Category:  category,
		Timestamp: time.Now().UnixMilli(),
		Context:   context,
	}
}
