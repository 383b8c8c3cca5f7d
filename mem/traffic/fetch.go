// Package traffic holds the per-stage memory traffic of a kernel and the
// reconciliation that removes redundant prefetch and drain traffic.
package traffic

import (
	"errors"
	"fmt"

	"github.com/sarchlab/zkmemsim/mem/addr"
)

// WordSize is the size of one field element in bytes.
const WordSize = 8

// ErrMalformedRange is returned when a stage holds a range whose start lies
// after its end.
var ErrMalformedRange = errors.New("malformed address range")

// FetchType tells whether a fetch reads from or writes to memory.
type FetchType uint32

// The two fetch types. The values are part of the binary trace format.
const (
	Read FetchType = iota
	Write
)

func (t FetchType) String() string {
	switch t {
	case Read:
		return "Read"
	case Write:
		return "Write"
	default:
		return fmt.Sprintf("FetchType(%d)", uint32(t))
	}
}

// A Fetch is the address traffic of a kernel, split into pipeline stages.
// Each stage is the set of ranges that move in that stage.
type Fetch struct {
	FetchType FetchType
	Addr      [][]addr.Range
	Systolic  bool
	WordSize  int
	Mergable  bool
	Delay     []int

	// Interval is the number of cycles between two request lines.
	Interval float32

	// Segmenter compresses the raw addresses given to Push. A nil Segmenter
	// uses addr.NewConsecutiveSegmentBuilder().
	Segmenter addr.SegmentBuilder
}

// NewFetch creates an empty Fetch of the given type.
func NewFetch(t FetchType) *Fetch {
	return &Fetch{
		FetchType: t,
		Addr:      make([][]addr.Range, 0),
		WordSize:  WordSize,
		Delay:     make([]int, 0),
		Interval:  1.0,
	}
}

func (f *Fetch) segmenter() addr.SegmentBuilder {
	if f.Segmenter == nil {
		return addr.NewConsecutiveSegmentBuilder()
	}

	return f.Segmenter
}

// Push appends a stage. The addresses of all banks are flattened and
// compressed into ranges.
func (f *Fetch) Push(banks [][]uint64) {
	n := 0
	for _, b := range banks {
		n += len(b)
	}

	flat := make([]uint64, 0, n)
	for _, b := range banks {
		flat = append(flat, b...)
	}

	f.Addr = append(f.Addr, f.segmenter().Build(flat))
}

// PushRanges appends a stage that is already expressed as ranges.
func (f *Fetch) PushRanges(rs []addr.Range) {
	stage := addr.Clone(rs)
	if stage == nil {
		stage = make([]addr.Range, 0)
	}

	f.Addr = append(f.Addr, stage)
}

// Extend appends the stages and delays of other. Mergability is not
// checked.
func (f *Fetch) Extend(other *Fetch) {
	for _, stage := range other.Addr {
		f.Addr = append(f.Addr, addr.Clone(stage))
	}

	f.Delay = append(f.Delay, other.Delay...)
}

// Len returns the number of stages.
func (f *Fetch) Len() int {
	return len(f.Addr)
}

// NumFetchLines returns the number of ranges over all stages.
func (f *Fetch) NumFetchLines() int {
	n := 0
	for _, stage := range f.Addr {
		n += len(stage)
	}

	return n
}

// Stage returns a copy of the ranges of stage i.
func (f *Fetch) Stage(i int) []addr.Range {
	return addr.Clone(f.Addr[i])
}

// AddrTrans relocates every range through t. When t splits a range, the
// first piece takes the range's position and the rest are queued behind the
// stage's remaining ranges and translated again.
func (f *Fetch) AddrTrans(t addr.Translator) {
	f.translate(t.Translate)
}

// AddrTransVec is AddrTrans over several translators. For each range the
// translators are tried in order and the first one that moves the start of
// the range is used. If none moves it, the image from the last translator is
// used.
func (f *Fetch) AddrTransVec(ts []addr.Translator) {
	if len(ts) == 0 {
		return
	}

	f.translate(func(r addr.Range) []addr.Range {
		var image []addr.Range
		for _, t := range ts {
			image = t.Translate(r)
			if image[0].Start != r.Start {
				break
			}
		}

		return image
	})
}

func (f *Fetch) translate(fn func(addr.Range) []addr.Range) {
	for i, stage := range f.Addr {
		queue := addr.Clone(stage)
		out := make([]addr.Range, 0, len(stage))

		for len(queue) > 0 {
			r := queue[0]
			queue = queue[1:]

			image := fn(r)
			out = append(out, image[0])
			queue = append(queue, image[1:]...)
		}

		f.Addr[i] = out
	}
}

// Clear drops all stages and delays and resets the interval.
func (f *Fetch) Clear() {
	f.Addr = f.Addr[:0]
	f.Delay = f.Delay[:0]
	f.Interval = 0
}

// Clone returns a deep copy.
func (f *Fetch) Clone() *Fetch {
	c := *f
	c.Addr = make([][]addr.Range, len(f.Addr))

	for i, stage := range f.Addr {
		c.Addr[i] = addr.Clone(stage)
		if c.Addr[i] == nil {
			c.Addr[i] = make([]addr.Range, 0)
		}
	}

	c.Delay = append(make([]int, 0, len(f.Delay)), f.Delay...)

	return &c
}

// Validate reports the first range whose start lies after its end.
func (f *Fetch) Validate() error {
	for i, stage := range f.Addr {
		for _, r := range stage {
			if !r.WellFormed() {
				return fmt.Errorf("%w: %s in stage %d of %s fetch",
					ErrMalformedRange, r, i, f.FetchType)
			}
		}
	}

	return nil
}

// CheckDelays reports whether there is exactly one delay per stage.
func (f *Fetch) CheckDelays() error {
	if len(f.Delay) != len(f.Addr) {
		return fmt.Errorf("%s fetch has %d stages but %d delays",
			f.FetchType, len(f.Addr), len(f.Delay))
	}

	return nil
}
