package audit

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// fingerprint hashes the category, context, and events of a record (trace id
// and all timestamps cleared, on a copy) with xxhash — fast, non-cryptographic, and already a transitive dependency of
// this pack's ClickHouse driver, promoted here to a direct use for content
// fingerprinting rather than re-deriving the same thing from crypto/sha256.
func fingerprint(rec Record) string {
	cp := rec
	cp.Timestamp = 0
	cp.TraceID = ""
	cp.Events = make([]Event, len(rec.Events))
	for i, ev := range rec.Events {
		ev.TS = 0
		cp.Events[i] = ev
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return ""
	}
	sum := xxhash.Sum64(b)
	return strconv.FormatUint(sum, 16)
}
