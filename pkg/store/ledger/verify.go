package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const recordSchemaURL = "https://tearframe.schemas.local/ledger/record.schema.json"

const recordSchema = `{
  "type": "object",
  "required": ["agent", "metrics", "note", "ts", "hash"],
  "properties": {
    "agent": {"type": "string", "minLength": 1},
    "metrics": {"type": "object", "additionalProperties": {"type": "number"}},
    "note": {"type": "string"},
    "idempotency_key": {"type": "string"},
    "metadata": {"type": "object"},
    "ts": {"type": "string", "minLength": 1},
    "hash": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
  }
}`

var compiledRecordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(recordSchemaURL, strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("ledger schema load failed: %w", err)
	}
	return c.Compile(recordSchemaURL)
})

// Problem kinds reported by Verify.
const (
	ProblemMalformed    = "malformed"
	ProblemSchema       = "schema"
	ProblemHashMismatch = "hash_mismatch"
	ProblemOrder        = "ts_order"
)

// Problem describes one suspicious ledger line. Line is 1-based.
type Problem struct {
	Line   int    `json:"line"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// VerifyReport summarizes a full pass over the ledger.
type VerifyReport struct {
	Path     string    `json:"path"`
	Records  int       `json:"records"`
	Problems []Problem `json:"problems,omitempty"`
}

// OK reports whether the pass found nothing wrong.
func (r VerifyReport) OK() bool { return len(r.Problems) == 0 }

// Verify re-reads the ledger, validates every line against the record schema,
// recomputes each content hash and checks timestamps never go backwards. It
// only reads; a missing ledger verifies as empty.
func (f *FileLedger) Verify(ctx context.Context) (VerifyReport, error) {
	report := VerifyReport{Path: f.path}

	schema, err := compiledRecordSchema()
	if err != nil {
		return report, err
	}

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = file.Close() }()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lastTS string
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		report.Records++

		var generic any
		if err := json.Unmarshal(line, &generic); err != nil {
			report.Problems = append(report.Problems, Problem{Line: lineNo, Kind: ProblemMalformed, Detail: err.Error()})
			continue
		}
		if err := schema.Validate(generic); err != nil {
			report.Problems = append(report.Problems, Problem{Line: lineNo, Kind: ProblemSchema, Detail: err.Error()})
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			report.Problems = append(report.Problems, Problem{Line: lineNo, Kind: ProblemMalformed, Detail: err.Error()})
			continue
		}
		want, err := ContentHash(rec)
		if err != nil {
			report.Problems = append(report.Problems, Problem{Line: lineNo, Kind: ProblemMalformed, Detail: err.Error()})
			continue
		}
		if want != rec.Hash {
			report.Problems = append(report.Problems, Problem{
				Line:   lineNo,
				Kind:   ProblemHashMismatch,
				Detail: fmt.Sprintf("stored %s, computed %s", rec.Hash, want),
			})
		}
		if rec.Timestamp < lastTS {
			report.Problems = append(report.Problems, Problem{
				Line:   lineNo,
				Kind:   ProblemOrder,
				Detail: fmt.Sprintf("%s precedes %s", rec.Timestamp, lastTS),
			})
		} else {
			lastTS = rec.Timestamp
		}
	}
	if err := sc.Err(); err != nil {
		return report, fmt.Errorf("read ledger: %w", err)
	}
	return report, nil
}
