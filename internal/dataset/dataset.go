// Package dataset parses and validates EC50/potency CSV uploads.
package dataset

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	ColumnSubstance = "Substance"
	ColumnEC50      = "EC50_nM"
	ColumnPotency   = "Potency"
)

// RequiredColumns lists the header columns in the order they are checked.
var RequiredColumns = []string{ColumnSubstance, ColumnEC50, ColumnPotency}

// Sample is one observation. EC50nM is strictly positive and Potency is
// non-negative, relative to DAMGO.
type Sample struct {
	Substance string  `json:"substance"`
	EC50nM    float64 `json:"ec50_nm"`
	Potency   float64 `json:"potency"`
}

type SampleSet struct {
	Samples  []Sample   `json:"samples"`
	Rejected []RowError `json:"rejected,omitempty"`
}

func (s *SampleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// Preview returns at most n samples from the head of the set.
func (s *SampleSet) Preview(n int) []Sample {
	if s == nil || n <= 0 {
		return []Sample{}
	}
	if n > len(s.Samples) {
		n = len(s.Samples)
	}
	out := make([]Sample, n)
	copy(out, s.Samples[:n])
	return out
}

// XY returns the EC50 and potency columns as parallel slices in input order.
func (s *SampleSet) XY() (xs, ys []float64) {
	xs = make([]float64, len(s.Samples))
	ys = make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		xs[i] = smp.EC50nM
		ys[i] = smp.Potency
	}
	return xs, ys
}

// Fingerprint is a stable hex digest of the accepted rows.
func (s *SampleSet) Fingerprint() string {
	d := xxhash.New()
	var buf [8]byte
	for _, smp := range s.Samples {
		_, _ = d.WriteString(smp.Substance)
		_, _ = d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(smp.EC50nM))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(smp.Potency))
		_, _ = d.Write(buf[:])
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
