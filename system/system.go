// Package system turns the traffic of a sequence of kernels into a RAM
// request trace.
//
// Consecutive kernels are reconciled against each other: the last prefetch
// and drain stage of a kernel are carried over and prepended to the next
// kernel before its traffic is merged, so that data already on chip is not
// fetched again.
package system

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/datarecording"
	"github.com/sarchlab/zkmemsim/kernel"
	"github.com/sarchlab/zkmemsim/mem/addr"
	"github.com/sarchlab/zkmemsim/mem/alloc"
	"github.com/sarchlab/zkmemsim/mem/traffic"
	"github.com/sarchlab/zkmemsim/ramtrace"
	"github.com/sarchlab/zkmemsim/util"
)

// ErrShapeMismatch is returned when the stage counts of a kernel's fetches,
// delays and requests disagree.
var ErrShapeMismatch = errors.New("traffic shape mismatch")

// MergeStatsTable receives one row per kernel run when a data recorder is
// attached.
const MergeStatsTable = "merge_stats"

// A MergeStat is one row of MergeStatsTable. Line counts are taken before
// and after the kernel's traffic is merged.
type MergeStat struct {
	Call                int
	Kernel              string
	Stages              int
	PrefetchLinesBefore int
	PrefetchLinesAfter  int
	DrainLinesBefore    int
	DrainLinesAfter     int
	PrefetchBytesBefore uint64
	PrefetchBytesAfter  uint64
	DrainBytesBefore    uint64
	DrainBytesAfter     uint64
}

// TrafficReport accumulates the traffic of all kernel runs since the last
// reset.
type TrafficReport struct {
	Calls               int    `json:"calls"`
	Stages              int    `json:"stages"`
	PrefetchLinesBefore int    `json:"prefetch_lines_before"`
	PrefetchLinesAfter  int    `json:"prefetch_lines_after"`
	DrainLinesBefore    int    `json:"drain_lines_before"`
	DrainLinesAfter     int    `json:"drain_lines_after"`
	PrefetchBytesBefore uint64 `json:"prefetch_bytes_before"`
	PrefetchBytesAfter  uint64 `json:"prefetch_bytes_after"`
	DrainBytesBefore    uint64 `json:"drain_bytes_before"`
	DrainBytesAfter     uint64 `json:"drain_bytes_after"`
	Ops                 uint64 `json:"ops"`
}

// System runs kernels and writes their requests. Runs and resets are
// serialized. The reports can be read from other goroutines while a kernel
// runs.
type System struct {
	lock sync.RWMutex

	arch     config.ArchConfig
	mem      *alloc.MemAlloc
	trace    *ramtrace.Writer
	recorder datarecording.DataRecorder

	lastPrefetch []addr.Range
	lastDrain    []addr.Range

	computation map[string]uint64
	report      TrafficReport
}

// Allocator returns the memory allocator of the system.
func (s *System) Allocator() *alloc.MemAlloc {
	return s.mem
}

// TraceWriter returns where the requests go.
func (s *System) TraceWriter() *ramtrace.Writer {
	return s.trace
}

// Computation returns the computation per kernel type.
func (s *System) Computation() map[string]uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return maps.Clone(s.computation)
}

// TrafficReport returns the accumulated traffic.
func (s *System) TrafficReport() TrafficReport {
	s.lock.RLock()
	defer s.lock.RUnlock()

	r := s.report
	r.Ops = s.trace.NumOps()

	return r
}

// Reset forgets the carried stages and the statistics and restarts the
// trace.
func (s *System) Reset() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	clear(s.computation)
	s.lastPrefetch = nil
	s.lastDrain = nil
	s.report = TrafficReport{}

	return s.trace.Reset()
}

// RunOnce runs one kernel.
func (s *System) RunOnce(k kernel.Kernel) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.computation[k.KernelType()] += k.Computation()

	logrus.Debugf("Running %s kernel", k.KernelType())

	return s.runTrace(
		k.KernelType(),
		k.Prefetch(),
		k.ReadRequest(),
		k.WriteRequest(),
		k.Drain(),
	)
}

// RunVec runs several kernels as one. All their stages are fused into a
// single stage that is not merged.
func (s *System) RunVec(ks []kernel.Kernel) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	prefetch := traffic.NewFetch(traffic.Read)
	drain := traffic.NewFetch(traffic.Write)
	readReq := traffic.NewRequest()
	writeReq := traffic.NewRequest()

	var reads, writes []addr.Range

	readLines, writeLines := 0, 0

	for _, k := range ks {
		s.computation[k.KernelType()] += k.Computation()

		for _, stage := range k.Prefetch().Addr {
			reads = append(reads, stage...)
		}

		for _, stage := range k.Drain().Addr {
			writes = append(writes, stage...)
		}

		readLines += k.ReadRequest().NumRequestLines()
		writeLines += k.WriteRequest().NumRequestLines()
	}

	prefetch.PushRanges(reads)
	prefetch.Delay = []int{0}
	drain.PushRanges(writes)
	drain.Delay = []int{0}
	readReq.NumLines = []int{readLines}
	writeReq.NumLines = []int{writeLines}

	logrus.Debugf("Running %d fused kernels", len(ks))

	return s.runTrace("fused", prefetch, readReq, writeReq, drain)
}

func checkShape(
	prefetch *traffic.Fetch,
	readReq *traffic.Request,
	writeReq *traffic.Request,
	drain *traffic.Fetch,
) error {
	ok := prefetch.Len() == len(prefetch.Delay) &&
		drain.Len() == len(drain.Delay) &&
		prefetch.Len() == readReq.Len() &&
		drain.Len() == writeReq.Len() &&
		(prefetch.Len() == drain.Len() ||
			prefetch.Len() == 0 || drain.Len() == 0)
	if !ok {
		return fmt.Errorf("%w: prefetch %d stages %d delays, "+
			"read request %d, write request %d, drain %d stages %d delays",
			ErrShapeMismatch,
			prefetch.Len(), len(prefetch.Delay),
			readReq.Len(), writeReq.Len(),
			drain.Len(), len(drain.Delay))
	}

	if prefetch.Systolic != drain.Systolic {
		return fmt.Errorf("%w: prefetch and drain disagree on systolic",
			ErrShapeMismatch)
	}

	return nil
}

func lineStats(f *traffic.Fetch) (int, uint64) {
	var bytes uint64
	for _, stage := range f.Addr {
		bytes += addr.TotalLength(stage)
	}

	return f.NumFetchLines(), bytes
}

func (s *System) runTrace(
	name string,
	prefetch *traffic.Fetch,
	readReq *traffic.Request,
	writeReq *traffic.Request,
	drain *traffic.Fetch,
) error {
	err := checkShape(prefetch, readReq, writeReq, drain)
	if err != nil {
		return err
	}

	err = errors.Join(prefetch.Validate(), drain.Validate())
	if err != nil {
		return err
	}

	stat := MergeStat{
		Call:   s.report.Calls,
		Kernel: name,
		Stages: max(prefetch.Len(), drain.Len()),
	}
	stat.PrefetchLinesBefore, stat.PrefetchBytesBefore = lineStats(prefetch)
	stat.DrainLinesBefore, stat.DrainBytesBefore = lineStats(drain)

	s.reconcile(prefetch, drain)

	stat.PrefetchLinesAfter, stat.PrefetchBytesAfter = lineStats(prefetch)
	stat.DrainLinesAfter, stat.DrainBytesAfter = lineStats(drain)
	s.record(stat)

	parallel := s.arch.NumTiles * s.arch.ArrayLength
	if prefetch.Systolic {
		parallel = s.arch.NumTiles
	}

	for i := range max(prefetch.Len(), drain.Len()) {
		reads, writes := stageOps(i, prefetch, readReq, writeReq, drain, parallel)

		err := s.trace.AddTrace(reads, writes)
		if err != nil {
			return fmt.Errorf("stage %d of %s: %w", i, name, err)
		}
	}

	return nil
}

// reconcile merges the fetches with the stages carried over from the
// previous run and remembers the new last stages.
func (s *System) reconcile(prefetch, drain *traffic.Fetch) {
	prefetch.Addr = append([][]addr.Range{addr.Clone(s.lastPrefetch)}, prefetch.Addr...)
	drain.Addr = append([][]addr.Range{addr.Clone(s.lastDrain)}, drain.Addr...)

	traffic.Merge(prefetch, drain)

	prefetch.Addr = prefetch.Addr[1:]
	drain.Addr = drain.Addr[1:]

	s.lastPrefetch = nil
	if n := prefetch.Len(); n > 0 {
		s.lastPrefetch = addr.Clone(prefetch.Addr[n-1])
	}

	s.lastDrain = nil
	if n := drain.Len(); n > 0 {
		s.lastDrain = addr.Clone(drain.Addr[n-1])
	}
}

func (s *System) record(stat MergeStat) {
	s.report.Calls++
	s.report.Stages += stat.Stages
	s.report.PrefetchLinesBefore += stat.PrefetchLinesBefore
	s.report.PrefetchLinesAfter += stat.PrefetchLinesAfter
	s.report.DrainLinesBefore += stat.DrainLinesBefore
	s.report.DrainLinesAfter += stat.DrainLinesAfter
	s.report.PrefetchBytesBefore += stat.PrefetchBytesBefore
	s.report.PrefetchBytesAfter += stat.PrefetchBytesAfter
	s.report.DrainBytesBefore += stat.DrainBytesBefore
	s.report.DrainBytesAfter += stat.DrainBytesAfter

	if s.recorder != nil {
		s.recorder.InsertData(MergeStatsTable, stat)
	}
}

func at[T any](xs []T, i int) T {
	var zero T
	if i < len(xs) {
		return xs[i]
	}

	return zero
}

// stageOps converts stage i into ops. Ids start at 0. Writes depend on all
// reads of the stage. The first write carries the latency of the stage and
// the other writes wait for it.
func stageOps(
	i int,
	prefetch *traffic.Fetch,
	readReq *traffic.Request,
	writeReq *traffic.Request,
	drain *traffic.Fetch,
	parallel int,
) (reads, writes []ramtrace.OpRecord) {
	readRanges := at(prefetch.Addr, i)
	writeRanges := at(drain.Addr, i)

	reads = make([]ramtrace.OpRecord, len(readRanges))
	readIDs := make([]uint64, len(readRanges))

	for j, r := range readRanges {
		reads[j] = ramtrace.OpRecord{
			ID:        uint64(j),
			Addr:      r.Start,
			FetchType: prefetch.FetchType,
			Size:      uint32(r.Length()),
		}
		readIDs[j] = uint64(j)
	}

	writes = make([]ramtrace.OpRecord, len(writeRanges))
	for j, r := range writeRanges {
		writes[j] = ramtrace.OpRecord{
			ID:           uint64(len(reads) + j),
			Addr:         r.Start,
			FetchType:    drain.FetchType,
			Size:         uint32(r.Length()),
			Dependencies: append([]uint64(nil), readIDs...),
		}
	}

	if len(writes) == 0 {
		return reads, writes
	}

	p := uint64(parallel)
	delay := at(prefetch.Delay, i) + at(drain.Delay, i) +
		int(prefetch.Interval)*int(util.CeilDiv(uint64(at(readReq.NumLines, i)), p)) +
		int(drain.Interval)*int(util.CeilDiv(uint64(at(writeReq.NumLines, i)), p))
	writes[0].Delay = uint32(delay)

	for j := 1; j < len(writes); j++ {
		writes[j].Dependencies = append(writes[j].Dependencies, writes[0].ID)
	}

	return reads, writes
}
