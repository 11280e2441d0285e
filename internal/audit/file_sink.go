package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
)

// FileSink appends one JSON object per line to a local file. Concurrent
// writers serialize through mu, matching §5's "audit sink is the only
// shared resource and must serialize writes".
type FileSink struct {
	mu           sync.Mutex
	path         string
	f            *os.File
	rotateBytes  int64
	writtenBytes int64
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithRotation sets the size threshold past which the sink rotates the
// current file into a timestamped .gz segment before continuing to append.
// A zero or negative threshold disables rotation.
func WithRotation(bytes int64) FileSinkOption {
	return func(fs *FileSink) { fs.rotateBytes = bytes }
}

// NewFileSink opens (creating if necessary) an append-only JSONL file at
// path.
func NewFileSink(path string, opts ...FileSinkOption) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open sink file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("audit: stat sink file: %w", err)
	}
	fs := &FileSink{path: path, f: f, writtenBytes: info.Size()}
	for _, o := range opts {
		o(fs)
	}
	return fs, nil
}

// Write appends a single JSON-encoded record as one atomic line write. A
// record too large to fit in one syscall-level write is still emitted as a
// single io.Writer.Write call, which is atomic on local filesystems for the
// record sizes this sink produces.
func (fs *FileSink) Write(_ context.Context, rec Record) error {
	if rec.Fingerprint == "" {
		rec.Fingerprint = Fingerprint(rec)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	line = append(line, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.rotateBytes > 0 && fs.writtenBytes+int64(len(line)) > fs.rotateBytes {
		if err := fs.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := fs.f.Write(line)
	if err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	fs.writtenBytes += int64(n)
	return nil
}

// rotateLocked compresses the current file into a .gz segment and truncates
// it so appends continue from a fresh, empty file. Caller must hold fs.mu.
func (fs *FileSink) rotateLocked() error {
	if err := fs.f.Close(); err != nil {
		return fmt.Errorf("audit: close before rotate: %w", err)
	}

	segment := fmt.Sprintf("%s.%d.gz", fs.path, time.Now().UnixNano())
	if err := gzipFile(fs.path, segment); err != nil {
		return fmt.Errorf("audit: rotate to %s: %w", segment, err)
	}
	log.Printf("audit: rotated %s (%s) into %s", fs.path, humanize.Bytes(uint64(fs.writtenBytes)), segment)

	f, err := os.OpenFile(fs.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: reopen after rotate: %w", err)
	}
	fs.f = f
	fs.writtenBytes = 0
	return nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		return err
	}
	return gw.Close()
}

// Close flushes and closes the underlying file.
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.f.Close()
}

// FindByTraceID tails the live JSONL file (rotated .gz segments are not
// searched) for the most recent record with the given trace id, backing
// the debug audit-lookup endpoint. It returns ok=false if no match exists.
func (fs *FileSink) FindByTraceID(traceID string) (Record, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if err != nil {
		return Record{}, false, fmt.Errorf("audit: open sink file for lookup: %w", err)
	}
	defer f.Close()

	var found Record
	ok := false
	dec := json.NewDecoder(f)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return Record{}, false, fmt.Errorf("audit: decode sink record: %w", err)
		}
		if rec.TraceID == traceID {
			found, ok = rec, true
		}
	}
	return found, ok, nil
}
