package addr

import "slices"

// DefaultMaxGap is the largest distance between two neighbouring addresses
// that still places them in the same request. It equals the 64-byte request
// granule of the RAM trace.
const DefaultMaxGap = 64

// A SegmentBuilder compresses a multiset of addresses into closed ranges.
type SegmentBuilder interface {
	Build(addrs []uint64) []Range
}

// ConsecutiveSegmentBuilder merges sorted addresses into one range as long as
// the gap to the previous address does not exceed MaxGap.
//
// Address 0 is never emitted. The allocator reserves it, and kernels use it
// to mark an absent operand.
type ConsecutiveSegmentBuilder struct {
	MaxGap uint64
}

// NewConsecutiveSegmentBuilder returns a builder using DefaultMaxGap.
func NewConsecutiveSegmentBuilder() ConsecutiveSegmentBuilder {
	return ConsecutiveSegmentBuilder{MaxGap: DefaultMaxGap}
}

// Build returns the ranges in ascending order. The input is not modified.
func (b ConsecutiveSegmentBuilder) Build(addrs []uint64) []Range {
	sorted := make([]uint64, 0, len(addrs))
	for _, a := range addrs {
		if a != 0 {
			sorted = append(sorted, a)
		}
	}

	ranges := make([]Range, 0)
	if len(sorted) == 0 {
		return ranges
	}

	slices.Sort(sorted)

	start, end := sorted[0], sorted[0]
	for _, a := range sorted[1:] {
		if a-end <= b.MaxGap {
			end = a
			continue
		}

		ranges = append(ranges, Range{Start: start, End: end})
		start, end = a, a
	}

	ranges = append(ranges, Range{Start: start, End: end})

	return ranges
}
