package predictor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type InputKind string

const (
	NotANumber  InputKind = "not_a_number"
	NonPositive InputKind = "non_positive"
)

var (
	ErrNotANumber  = errors.New("EC50 must be a number")
	ErrNonPositive = errors.New("EC50 must be greater than zero")
)

// InputError rejects a user-entered EC50 value.
type InputError struct {
	Kind InputKind
	Raw  string
}

func (e *InputError) Error() string {
	if e.Kind == NonPositive {
		return fmt.Sprintf("%s, got %q", ErrNonPositive, e.Raw)
	}
	return fmt.Sprintf("%s, got %q", ErrNotANumber, e.Raw)
}

func (e *InputError) Is(target error) bool {
	switch e.Kind {
	case NotANumber:
		return target == ErrNotANumber
	case NonPositive:
		return target == ErrNonPositive
	}
	return false
}

// ValidateEC50Input parses a free-text EC50 concentration in nM.
func ValidateEC50Input(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InputError{Kind: NotANumber, Raw: raw}
	}
	if v <= 0 {
		return 0, &InputError{Kind: NonPositive, Raw: raw}
	}
	return v, nil
}
