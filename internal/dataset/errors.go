package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind classifies a rejected dataset.
type ValidationKind string

const (
	MissingColumn ValidationKind = "missing_column"
	MalformedRow  ValidationKind = "malformed_row"
	DuplicateX    ValidationKind = "duplicate_x"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrMalformedRow  = errors.New("malformed row")
	ErrDuplicateX    = errors.New("duplicate EC50 value")
)

// RowError describes one rejected CSV row. Line is 1-based and counts the header.
type RowError struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Column, e.Reason)
}

type ValidationError struct {
	Kind   ValidationKind
	Column string
	Rows   []RowError
	Values []float64
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingColumn:
		return fmt.Sprintf("missing column %q", e.Column)
	case MalformedRow:
		parts := make([]string, 0, len(e.Rows))
		for _, r := range e.Rows {
			parts = append(parts, r.String())
		}
		return fmt.Sprintf("%d malformed row(s): %s", len(e.Rows), strings.Join(parts, "; "))
	case DuplicateX:
		return fmt.Sprintf("duplicate EC50_nM values: %v", e.Values)
	default:
		return "invalid dataset"
	}
}

// Is lets callers match on the kind sentinels with errors.Is.
func (e *ValidationError) Is(target error) bool {
	switch e.Kind {
	case MissingColumn:
		return target == ErrMissingColumn
	case MalformedRow:
		return target == ErrMalformedRow
	case DuplicateX:
		return target == ErrDuplicateX
	}
	return false
}
