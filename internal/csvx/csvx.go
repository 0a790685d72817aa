// Package csvx reads and writes the spreadsheets exchanged with operators.
// Exports start with a UTF-8 BOM so Excel detects the encoding; imports
// accept files with or without one.
package csvx

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const bom = "\ufeff"

// RowError explains why one input line was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// table is a header-mapped view over a CSV stream.
type table struct {
	r   *csv.Reader
	col map[string]int
}

func openTable(r io.Reader, aliases map[string]string, required ...string) (*table, []RowError) {
	br := bufio.NewReader(r)
	// a BOM ahead of a quoted header breaks the csv reader
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, []byte(bom)) {
		_, _ = br.Discard(len(bom))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, []RowError{{Line: 1, Reason: "empty file"}}
	}
	if err != nil {
		return nil, []RowError{{Line: 1, Reason: err.Error()}}
	}
	t := &table{r: cr, col: map[string]int{}}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if canon, ok := aliases[h]; ok {
			h = canon
		}
		if _, dup := t.col[h]; !dup {
			t.col[h] = i
		}
	}
	var missing []string
	for _, c := range required {
		if _, ok := t.col[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, []RowError{{Line: 1, Reason: "missing column(s): " + strings.Join(missing, ", ")}}
	}
	return t, nil
}

// next returns the next record, or io.EOF. A malformed line comes back as a
// RowError and reading continues.
func (t *table) next() (record, *RowError, error) {
	rec, err := t.r.Read()
	if err == nil {
		line, _ := t.r.FieldPos(0)
		return record{cells: rec, col: t.col, line: line}, nil, nil
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return record{}, &RowError{Line: pe.StartLine, Reason: pe.Err.Error()}, nil
	}
	return record{}, nil, err
}

type record struct {
	cells []string
	col   map[string]int
	line  int
}

func (r record) get(name string) string {
	i, ok := r.col[name]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r record) blank() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// parseCents accepts "500", "500.5", "500,50" and "1 200.00".
func parseCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than 2 decimals", s)
	}
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %q is too large", s)
	}
	return cents.IntPart(), nil
}
