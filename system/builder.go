package system

import (
	"io"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/datarecording"
	"github.com/sarchlab/zkmemsim/mem/alloc"
	"github.com/sarchlab/zkmemsim/ramtrace"
)

// Builder can build Systems.
type Builder struct {
	cfg      config.Config
	mem      *alloc.MemAlloc
	trace    *ramtrace.Writer
	recorder datarecording.DataRecorder
}

// MakeBuilder creates a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithConfig sets the configuration of the system.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithAllocator sets the memory allocator. If not set, an allocator sized by
// the configuration is created.
func (b Builder) WithAllocator(m *alloc.MemAlloc) Builder {
	b.mem = m
	return b
}

// WithTraceWriter sets where the requests go. If not set, requests are
// counted and discarded.
func (b Builder) WithTraceWriter(w *ramtrace.Writer) Builder {
	b.trace = w
	return b
}

// WithDataRecorder records merge statistics of every kernel run.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// Build creates a System.
func (b Builder) Build() *System {
	s := &System{
		arch:        b.cfg.Arch,
		mem:         b.mem,
		trace:       b.trace,
		recorder:    b.recorder,
		computation: make(map[string]uint64),
	}

	if s.mem == nil {
		s.mem = alloc.New(
			uint64(b.cfg.Memory.SizeGB), uint64(b.cfg.Memory.Align))
	}

	if s.trace == nil {
		w, err := ramtrace.MakeBuilder().Build(io.Discard)
		if err != nil {
			panic(err)
		}

		s.trace = w
	}

	if s.recorder != nil {
		s.recorder.CreateTable(MergeStatsTable, MergeStat{})
	}

	return s
}
