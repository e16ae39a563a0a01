package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/tearframe/pkg/canonicalize"
	"github.com/Mindburn-Labs/tearframe/pkg/pause"
	"github.com/Mindburn-Labs/tearframe/pkg/privacy"
	"github.com/Mindburn-Labs/tearframe/pkg/store"
)

// TimestampLayout is fixed-width so lexical order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

const maxLineBytes = 16 << 20

// FileLedger implements Ledger on a local newline-delimited JSON file.
//
// Appends from one process are serialized by a mutex; appends from separate
// processes are serialized by an exclusive lock on a sidecar "<path>.lock"
// file, which covers the whole scan-then-append sequence.
type FileLedger struct {
	path     string
	mu       sync.Mutex
	clock    func() time.Time // Injectable clock
	nonce    func() string
	logger   *slog.Logger
	redactor privacy.Scrubber
	receipts store.ReceiptStore
}

// Option configures a FileLedger.
type Option func(*FileLedger)

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(f *FileLedger) { f.clock = clock }
}

// WithNonce overrides the receipt nonce source.
func WithNonce(nonce func() string) Option {
	return func(f *FileLedger) { f.nonce = nonce }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *FileLedger) { f.logger = l }
}

func WithRedactor(r privacy.Scrubber) Option {
	return func(f *FileLedger) { f.redactor = r }
}

// WithReceiptStore sets the index used by Seal and Resolve. Defaults to an
// in-memory store.
func WithReceiptStore(s store.ReceiptStore) Option {
	return func(f *FileLedger) { f.receipts = s }
}

// NewFileLedger returns a ledger at path. Nothing is created on disk until the
// first Append.
func NewFileLedger(path string, opts ...Option) *FileLedger {
	f := &FileLedger{
		path:     path,
		clock:    time.Now,
		nonce:    uuid.NewString,
		logger:   slog.Default().With("component", "ledger"),
		redactor: privacy.NewRedactor(),
		receipts: store.NewMemoryReceiptStore(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the ledger file location.
func (f *FileLedger) Path() string { return f.path }

// Append implements Ledger.
//
// Order of checks: idempotency key (any prior record with the same key wins and
// nothing is written), then replay (same plan identity and same decision
// fingerprint under a different key fails with a ReplayDetected pause).
// Redaction and hashing happen before any I/O; hash and timestamp are only
// assigned to a record that is actually written.
func (f *FileLedger) Append(ctx context.Context, e Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec, fp, err := f.prepare(e)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := f.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	existing, err := f.scan()
	if err != nil {
		return "", err
	}

	if rec.IdempotencyKey != "" {
		for _, prior := range existing {
			if prior.IdempotencyKey == rec.IdempotencyKey {
				f.logger.InfoContext(ctx, "idempotent ledger write",
					"agent", rec.Agent, "idempotency_key", rec.IdempotencyKey, "hash", prior.Hash)
				return prior.Hash, nil
			}
		}
	}

	planID := rec.PlanID()
	var last string
	for _, prior := range existing {
		if prior.Timestamp > last {
			last = prior.Timestamp
		}
		if planID == "" || prior.PlanID() != planID {
			continue
		}
		priorFP, err := fingerprint(prior)
		if err != nil {
			continue
		}
		if priorFP == fp {
			f.logger.WarnContext(ctx, "replay refused",
				"agent", rec.Agent, "plan_id", planID, "prior_hash", prior.Hash)
			return "", pause.New(pause.KindReplayDetected,
				"decision already recorded for plan %s as %s", planID, prior.Hash)
		}
	}

	ts := f.clock().UTC().Format(TimestampLayout)
	if ts < last {
		ts = last
	}
	rec.Timestamp = ts

	line, err := canonicalize.JCS(rec)
	if err != nil {
		return "", fmt.Errorf("encode ledger record: %w", err)
	}
	// scan could never read the record back
	if len(line) >= maxLineBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, len(line), maxLineBytes)
	}
	if err := f.write(append(line, '\n')); err != nil {
		return "", err
	}

	f.logger.DebugContext(ctx, "ledger append", "agent", rec.Agent, "hash", rec.Hash, "plan_id", planID)
	return rec.Hash, nil
}

// Lookup implements Ledger.
func (f *FileLedger) Lookup(ctx context.Context, contentHash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	records, err := f.scan()
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.Hash == contentHash {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Recent implements Ledger.
func (f *FileLedger) Recent(ctx context.Context, agent string, n int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	records, err := f.scan()
	if err != nil {
		return nil, err
	}
	var matched []Record
	for _, r := range records {
		if r.Agent == agent {
			matched = append(matched, r)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}

// Records implements Ledger.
func (f *FileLedger) Records(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.scan()
}

// ContentHash recomputes the content hash of a record from its fields.
func ContentHash(r Record) (string, error) {
	return canonicalize.CanonicalHash(r.payload(true))
}

// fingerprint is the content hash without the idempotency key: the identity of
// the decision itself.
func fingerprint(r Record) (string, error) {
	return canonicalize.CanonicalHash(r.payload(false))
}

func (f *FileLedger) prepare(e Entry) (Record, string, error) {
	if e.Agent == "" {
		return Record{}, "", errors.New("ledger: agent is required")
	}

	metrics := make(map[string]float64, len(e.Metrics))
	for k, v := range e.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, "", fmt.Errorf("ledger: metric %q is not finite", k)
		}
		metrics[k] = v
	}

	metadata, err := f.normalizeMetadata(e.Metadata)
	if err != nil {
		return Record{}, "", err
	}

	rec := Record{
		Agent:          e.Agent,
		Metrics:        metrics,
		Note:           f.redactor.Scrub(canonicalize.NormalizeText(e.Note)),
		IdempotencyKey: e.IdempotencyKey,
		Metadata:       metadata,
	}

	hash, err := ContentHash(rec)
	if err != nil {
		return Record{}, "", fmt.Errorf("hash ledger record: %w", err)
	}
	fp, err := fingerprint(rec)
	if err != nil {
		return Record{}, "", fmt.Errorf("fingerprint ledger record: %w", err)
	}
	rec.Hash = hash
	return rec, fp, nil
}

// normalizeMetadata brings metadata into its decoded-JSON shape, so the hashed
// form matches what a later scan reads back, then redacts every string in it.
func (f *FileLedger) normalizeMetadata(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ledger: metadata: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("ledger: metadata: %w", err)
	}
	scrubbed, ok := f.redactor.ScrubValue(generic).(map[string]any)
	if !ok {
		return nil, errors.New("ledger: redactor changed metadata shape")
	}
	return scrubbed, nil
}

// scan reads every well-formed record. Blank and undecodable lines (such as a
// torn final line left by a crashed writer) are skipped.
func (f *FileLedger) scan() ([]Record, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = file.Close() }()

	var records []Record
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}

// write appends one complete line with a single write call. A torn final
// line without a newline is terminated first so the new record starts on a
// line of its own.
func (f *FileLedger) write(line []byte) error {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	torn, err := endsMidLine(file)
	if err != nil {
		_ = file.Close()
		return err
	}
	if torn {
		line = append([]byte{'\n'}, line...)
	}
	n, err := file.Write(line)
	if err == nil && n != len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("append ledger record: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	return file.Close()
}

func endsMidLine(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat ledger: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read ledger tail: %w", err)
	}
	return last[0] != '\n', nil
}

func (f *FileLedger) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	lf, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open ledger lock: %w", err)
	}
	if err := lockFile(lf); err != nil {
		_ = lf.Close()
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	return func() {
		_ = unlockFile(lf)
		_ = lf.Close()
	}, nil
}
