package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkAppendsOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec := NewRecord(NewTraceID(int64(i)), CategoryGuardrailPass, map[string]any{"i": i})
		if err := sink.Write(context.Background(), rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line %d: %v", count, err)
		}
		if rec.Fingerprint == "" {
			t.Errorf("line %d: expected a fingerprint", count)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("got %d lines, want 3", count)
	}
}

func TestFindByTraceIDReturnsMostRecentMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	target := "1700000000000-deadbeef"
	_ = sink.Write(context.Background(), NewRecord("other-trace", CategoryGuardrailPass, nil))
	_ = sink.Write(context.Background(), NewRecord(target, CategoryGuardrailFail, map[string]any{"n": 1}))
	_ = sink.Write(context.Background(), NewRecord(target, CategorySafeFail, map[string]any{"n": 2}))

	rec, ok, err := sink.FindByTraceID(target)
	if err != nil {
		t.Fatalf("FindByTraceID: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if rec.Category != CategorySafeFail {
		t.Errorf("expected the most recent matching record, got category %v", rec.Category)
	}
}

func TestFindByTraceIDMissReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	_, ok, err := sink.FindByTraceID("nonexistent")
	if err != nil {
		t.Fatalf("FindByTraceID: %v", err)
	}
	if ok {
		t.Fatal("expected no match on an empty file")
	}
}

func TestFingerprintIgnoresTimestampAndTraceID(t *testing.T) {
	ctx := map[string]any{"station": "KDEN"}
	r1 := NewRecord("trace-a", CategoryGuardrailPass, ctx)
	r2 := NewRecord("trace-b", CategoryGuardrailPass, ctx)
	if Fingerprint(r1) != Fingerprint(r2) {
		t.Errorf("fingerprints should match when only trace id/timestamp differ")
	}

	r3 := NewRecord("trace-a", CategoryGuardrailFail, ctx)
	if Fingerprint(r1) == Fingerprint(r3) {
		t.Errorf("fingerprints should differ when category differs")
	}
}
