package traffic

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/zkmemsim/mem/addr"
)

// filterLines removes from next every address covered by exist and appends
// each removed piece to load.
//
// The order of the scan matters. next is walked by index and may grow while
// it is walked, since an interior cut appends the tail piece to the end. A
// candidate that is fully covered is removed and the scan of exist stops for
// that index. Otherwise the trimmed candidate keeps being compared against
// the remaining exist ranges.
func filterLines(exist []addr.Range, next *[]addr.Range, load *[]addr.Range) {
	if len(exist) == 0 {
		return
	}

	i := 0
	for i < len(*next) {
		removed := false

		for _, e := range exist {
			line := (*next)[i]

			o, ok := line.Overlap(e)
			if !ok {
				continue
			}

			switch {
			case o.Start == line.Start && o.End == line.End:
				*next = slices.Delete(*next, i, i+1)
				removed = true
			case o.Start == line.Start:
				(*next)[i] = addr.Range{Start: o.End + 1, End: line.End}
			case o.End == line.End:
				(*next)[i] = addr.Range{Start: line.Start, End: o.Start - 1}
			default:
				(*next)[i] = addr.Range{Start: line.Start, End: o.Start - 1}
				*next = append(*next, addr.Range{Start: o.End + 1, End: line.End})
			}

			*load = append(*load, o)

			if removed {
				break
			}
		}

		if !removed {
			i++
		}
	}
}

// Merge removes redundant traffic from the stages of prefetch and drain.
//
// For every stage j that has a successor, stage j+1 of prefetch loses what is
// already prefetched in stage j, what is drained in stage j, and what was
// found to be loaded while reconciling the previous stage. Whatever was found
// loaded is also cut out of drain stage j.
//
// Both fetches must agree on Mergable. Merge panics before touching either
// fetch if they do not, and does nothing if neither is mergable.
func Merge(prefetch, drain *Fetch) {
	if prefetch.Mergable != drain.Mergable {
		logrus.Panicf(
			"cannot merge a prefetch with mergable=%t into a drain with mergable=%t",
			prefetch.Mergable, drain.Mergable)
	}

	if !prefetch.Mergable {
		return
	}

	var preload []addr.Range

	for j := 0; j <= max(drain.Len(), prefetch.Len()); j++ {
		if j+1 >= prefetch.Len() {
			return
		}

		load := make([]addr.Range, 0)

		filterLines(prefetch.Addr[j], &prefetch.Addr[j+1], &load)

		if j < drain.Len() {
			filterLines(drain.Addr[j], &prefetch.Addr[j+1], &load)

			// Data loaded again must not be written back from the stale copy.
			discarded := make([]addr.Range, 0)
			filterLines(load, &drain.Addr[j], &discarded)
		}

		filterLines(preload, &prefetch.Addr[j+1], &load)

		preload = addr.Clone(load)
	}
}
