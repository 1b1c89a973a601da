package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type ParseOptions struct {
	// SkipMalformed drops bad rows into SampleSet.Rejected instead of failing
	// the whole upload.
	SkipMalformed bool
}

// Parse reads a CSV payload with at least the Substance, EC50_nM and Potency
// columns. Extra columns are ignored.
func Parse(r io.Reader, opts ParseOptions) (*SampleSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ValidationError{Kind: MissingColumn, Column: RequiredColumns[0]}
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, &ValidationError{Kind: MalformedRow, Rows: []RowError{{Line: pe.StartLine, Reason: pe.Err.Error()}}}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	set := &SampleSet{Samples: []Sample{}}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				set.Rejected = append(set.Rejected, RowError{Line: pe.StartLine, Reason: pe.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		smp, rowErr := parseRow(record, idx, line)
		if rowErr != nil {
			set.Rejected = append(set.Rejected, *rowErr)
			continue
		}
		set.Samples = append(set.Samples, smp)
	}

	if len(set.Rejected) > 0 && !opts.SkipMalformed {
		return nil, &ValidationError{Kind: MalformedRow, Rows: set.Rejected}
	}
	return set, nil
}

type columns struct {
	substance, ec50, potency int
}

func columnIndex(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := pos[name]; !seen {
			pos[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := pos[col]; !ok {
			return columns{}, &ValidationError{Kind: MissingColumn, Column: col}
		}
	}
	return columns{
		substance: pos[ColumnSubstance],
		ec50:      pos[ColumnEC50],
		potency:   pos[ColumnPotency],
	}, nil
}

func parseRow(record []string, idx columns, line int) (Sample, *RowError) {
	need := max(idx.substance, idx.ec50, idx.potency)
	if len(record) <= need {
		return Sample{}, &RowError{Line: line, Reason: fmt.Sprintf("expected at least %d fields, got %d", need+1, len(record))}
	}

	substance := strings.TrimSpace(record[idx.substance])
	if substance == "" {
		return Sample{}, &RowError{Line: line, Column: ColumnSubstance, Reason: "empty substance"}
	}

	ec50, err := parseNumber(record[idx.ec50])
	if err != nil {
		return Sample{}, &RowError{Line: line, Column: ColumnEC50, Reason: err.Error()}
	}
	if ec50 <= 0 {
		return Sample{}, &RowError{Line: line, Column: ColumnEC50, Reason: "must be greater than zero"}
	}

	potency, err := parseNumber(record[idx.potency])
	if err != nil {
		return Sample{}, &RowError{Line: line, Column: ColumnPotency, Reason: err.Error()}
	}
	if potency < 0 {
		return Sample{}, &RowError{Line: line, Column: ColumnPotency, Reason: "must not be negative"}
	}

	return Sample{Substance: substance, EC50nM: ec50, Potency: potency}, nil
}

func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
