package ramtrace

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sarchlab/zkmemsim/util"
)

// A SizeBucket counts the ops whose size rounds up to 1<<LgSize bytes.
type SizeBucket struct {
	LgSize     int
	Count      uint64
	Percent    float64
	Cumulative float64
}

// A Summary describes the request sizes of a trace.
type Summary struct {
	TotalBytes uint64
	Buckets    []SizeBucket
}

func (s Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "total: %d\n", s.TotalBytes)

	for _, bucket := range s.Buckets {
		if bucket.LgSize == util.Log2(RequestSize)+1 {
			fmt.Fprintf(&b, "%s%dB%s\n",
				strings.Repeat("-", 16), RequestSize, strings.Repeat("-", 17))
		}

		fmt.Fprintf(&b, "%d: %d, %.1f%%, in %.1f%%\n",
			bucket.LgSize, bucket.Count, bucket.Percent, bucket.Cumulative)
	}

	return b.String()
}

type histogram map[int]uint64

func (h histogram) add(size uint32) {
	h[util.Log2(util.NextPow2(uint64(size)))]++
}

func (h histogram) summary() Summary {
	s := Summary{}

	for lg, count := range h {
		s.TotalBytes += count << lg
	}

	cumulative := 0.0

	for _, lg := range slices.Sorted(maps.Keys(h)) {
		count := h[lg]

		percent := 0.0
		if s.TotalBytes > 0 {
			percent = float64(count<<lg) * 100 / float64(s.TotalBytes)
		}

		cumulative += percent

		s.Buckets = append(s.Buckets, SizeBucket{
			LgSize:     lg,
			Count:      count,
			Percent:    percent,
			Cumulative: cumulative,
		})
	}

	return s
}
