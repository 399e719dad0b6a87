package brightness

import (
	"fmt"
	"sort"
)

// Bucket maps the half-open lux interval [MinLux, MaxLux) to a brightness step.
type Bucket struct {
	Step   int
	MinLux float64
	MaxLux float64
}

// Table is a validated, ordered bucket set covering a contiguous lux range.
// Step 0 is the off-equivalent level, steps 1..N are on levels.
type Table struct {
	buckets []Bucket
}

// NewTable validates the bucket set and returns an immutable lookup table.
// Requirements: at least one bucket, min < max per bucket, ranges contiguous
// with no gaps or overlaps, first min non-negative, and steps numbered 0..N
// ascending with the ranges.
func NewTable(buckets []Bucket) (*Table, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("no brightness buckets configured")
	}

	sorted := make([]Bucket, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinLux < sorted[j].MinLux })

	if sorted[0].MinLux < 0 {
		return nil, fmt.Errorf("bucket for step %d: min_lux %v is negative", sorted[0].Step, sorted[0].MinLux)
	}

	for i, b := range sorted {
		if b.MinLux >= b.MaxLux {
			return nil, fmt.Errorf("bucket for step %d: empty range [%v, %v)", b.Step, b.MinLux, b.MaxLux)
		}
		if b.Step != i {
			return nil, fmt.Errorf("bucket steps must run 0..%d ascending with lux ranges, got step %d at position %d",
				len(sorted)-1, b.Step, i)
		}
		if i > 0 && sorted[i-1].MaxLux != b.MinLux {
			return nil, fmt.Errorf("gap or overlap between steps %d and %d: [..., %v) vs [%v, ...)",
				sorted[i-1].Step, b.Step, sorted[i-1].MaxLux, b.MinLux)
		}
	}

	return &Table{buckets: sorted}, nil
}

// Map returns the step whose bucket contains lux. Values below the first
// bucket clamp to the lowest step, values at or above the last bucket's max
// clamp to the highest step. The clamped result reports that saturation so
// the caller can log out-of-range sensor readings; Map itself never fails.
func (t *Table) Map(lux float64) (step int, clamped bool) {
	first := t.buckets[0]
	if lux < first.MinLux {
		return first.Step, true
	}

	for _, b := range t.buckets {
		if lux >= b.MinLux && lux < b.MaxLux {
			return b.Step, false
		}
	}

	return t.buckets[len(t.buckets)-1].Step, true
}

// MaxStep returns the highest configured step.
func (t *Table) MaxStep() int {
	return t.buckets[len(t.buckets)-1].Step
}
