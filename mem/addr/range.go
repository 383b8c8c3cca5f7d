// Package addr defines address ranges over the word-addressed simulated
// memory and the collaborators that produce or relocate them.
package addr

import "fmt"

// A Range is a closed interval [Start, End] of addresses. Both ends are
// inclusive.
type Range struct {
	Start uint64
	End   uint64
}

// R is a shorthand constructor for a Range.
func R(start, end uint64) Range {
	return Range{Start: start, End: end}
}

// WellFormed returns true if r.Start <= r.End. All other methods on a Range
// require that the Range is well-formed.
func (r Range) WellFormed() bool {
	return r.Start <= r.End
}

// Length returns the number of addresses covered by the range.
func (r Range) Length() uint64 {
	return r.End - r.Start + 1
}

// Contains returns true if x falls in r.
func (r Range) Contains(x uint64) bool {
	return r.Start <= x && x <= r.End
}

// Overlap returns the intersection of r and r2. The returned bool is false
// when the ranges do not intersect, in which case the returned range is
// meaningless.
func (r Range) Overlap(r2 Range) (Range, bool) {
	o := Range{Start: max(r.Start, r2.Start), End: min(r.End, r2.End)}

	return o, o.Start <= o.End
}

// IsSupersetOf returns true if r2 lies entirely in r.
func (r Range) IsSupersetOf(r2 Range) bool {
	return r.Start <= r2.Start && r.End >= r2.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

// TotalLength sums the lengths of the given ranges.
func TotalLength(rs []Range) uint64 {
	var total uint64
	for _, r := range rs {
		total += r.Length()
	}

	return total
}

// Clone returns an independent copy of rs. A nil input stays nil.
func Clone(rs []Range) []Range {
	if rs == nil {
		return nil
	}

	out := make([]Range, len(rs))
	copy(out, rs)

	return out
}
