package audit

import "context"

// Sink is the append-only write surface for audit records. Implementations
// must serialize concurrent writes: the sink is the one shared, mutable
// resource in the request pipeline (§5).
//
// No read interface is required of a Sink; operators read the backing
// store (file, ClickHouse table) directly.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Fingerprint computes a stable content hash of a record's category,
// context and events, used to support the idempotency property (property 6:
// same input, same FinalResponse bytes ignoring timestamps). It excludes the
// trace id and every timestamp (the record's and its events') so two runs of
// the same deterministic request produce the same fingerprint; context
// values that vary per run themselves (a safe-fail answer embeds the trace
// id, a fetch trace carries its latency) still change it.
func Fingerprint(rec Record) string {
	return fingerprint(rec)
}
