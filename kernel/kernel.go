// Package kernel generates the memory traffic of accelerator kernels.
package kernel

import (
	"slices"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/mem/traffic"
)

// A Kernel is a unit of work whose memory traffic can be simulated.
type Kernel interface {
	// Prefetch returns a copy of the stages read ahead of use.
	Prefetch() *traffic.Fetch

	// Drain returns a copy of the stages written back.
	Drain() *traffic.Fetch

	// ReadRequest returns a copy of the read line counts.
	ReadRequest() *traffic.Request

	// WriteRequest returns a copy of the write line counts.
	WriteRequest() *traffic.Request

	// Computation returns the amount of arithmetic the kernel performs.
	Computation() uint64

	// KernelType names the kind of kernel for per-type accounting.
	KernelType() string
}

// Base holds the traffic of a kernel and implements the traffic getters of
// the Kernel interface.
type Base struct {
	prefetch     *traffic.Fetch
	drain        *traffic.Fetch
	readRequest  *traffic.Request
	writeRequest *traffic.Request
}

// NewBase creates a Base with an empty read prefetch and write drain.
func NewBase() Base {
	return Base{
		prefetch:     traffic.NewFetch(traffic.Read),
		drain:        traffic.NewFetch(traffic.Write),
		readRequest:  traffic.NewRequest(),
		writeRequest: traffic.NewRequest(),
	}
}

// Prefetch returns a copy of the prefetch stages.
func (b *Base) Prefetch() *traffic.Fetch {
	return b.prefetch.Clone()
}

// Drain returns a copy of the drain stages.
func (b *Base) Drain() *traffic.Fetch {
	return b.drain.Clone()
}

// ReadRequest returns a copy of the read line counts.
func (b *Base) ReadRequest() *traffic.Request {
	return b.readRequest.Clone()
}

// WriteRequest returns a copy of the write line counts.
func (b *Base) WriteRequest() *traffic.Request {
	return b.writeRequest.Clone()
}

// elementAddrs lists the address of every element of a vector.
func elementAddrs(base, length uint64) []uint64 {
	addrs := make([]uint64, length)
	for i := range addrs {
		addrs[i] = base + uint64(i)*config.ElemSize
	}

	return addrs
}

// stages cuts addresses into buffer-sized stages and every stage into bank
// rows of ArrayLength addresses.
func stages(addrs []uint64, arch config.ArchConfig) [][][]uint64 {
	var out [][][]uint64

	for chunk := range slices.Chunk(addrs, arch.NumElems()) {
		var banks [][]uint64
		for row := range slices.Chunk(chunk, arch.ArrayLength) {
			banks = append(banks, row)
		}

		out = append(out, banks)
	}

	return out
}
