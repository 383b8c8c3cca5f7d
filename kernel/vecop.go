package kernel

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/zkmemsim/config"
)

// VecOpType is the arithmetic of an element-wise vector operation.
type VecOpType int

// Supported element-wise operations.
const (
	VecAdd VecOpType = iota
	VecSub
	VecMul
)

func (t VecOpType) String() string {
	switch t {
	case VecAdd:
		return "add"
	case VecSub:
		return "sub"
	case VecMul:
		return "mul"
	default:
		return fmt.Sprintf("VecOpType(%d)", int(t))
	}
}

// Latency is the pipeline latency of the operation in cycles.
func (t VecOpType) Latency() int {
	if t == VecMul {
		return 2
	}

	return 1
}

// ParseVecOpType parses "add", "sub" or "mul".
func ParseVecOpType(s string) (VecOpType, error) {
	for _, t := range []VecOpType{VecAdd, VecSub, VecMul} {
		if t.String() == s {
			return t, nil
		}
	}

	return 0, fmt.Errorf("unknown vector operation %q", s)
}

// VecOpSrc tells whether the second operand is a vector or a scalar.
type VecOpSrc int

// Operand kinds.
const (
	VV VecOpSrc = iota
	VS
)

// VecOpConfig describes one element-wise operation. An operand whose address
// is 0 is absent and generates no traffic.
type VecOpConfig struct {
	VectorLength uint64
	AddrInput0   uint64
	AddrInput1   uint64
	AddrOutput   uint64
	OpType       VecOpType
	OpSrc        VecOpSrc
}

// VecOp is the address stream of an element-wise operation. It does not
// compute values.
type VecOp struct {
	Base

	Config VecOpConfig
}

// NewVecOp creates a VecOp. A disabled kernel has no traffic.
func NewVecOp(cfg VecOpConfig, arch config.ArchConfig, enable bool) *VecOp {
	k := &VecOp{
		Base:   NewBase(),
		Config: cfg,
	}

	if enable {
		k.createTraffic(arch)
	}

	logrus.Debugf("VecOp kernel %+v, %d stages", cfg, k.prefetch.Len())

	return k
}

func (k *VecOp) createTraffic(arch config.ArchConfig) {
	indices := make([]uint64, k.Config.VectorLength)
	for i := range indices {
		indices[i] = uint64(i)
	}

	for chunk := range slices.Chunk(indices, arch.NumElems()) {
		var reads, writes [][]uint64

		for row := range slices.Chunk(chunk, arch.ArrayLength) {
			reads = append(reads, k.operandRow(row)...)

			if k.Config.AddrOutput != 0 {
				writes = append(writes, offsets(k.Config.AddrOutput, row))
			}
		}

		if k.Config.OpSrc == VS && k.Config.AddrInput1 != 0 {
			reads = append(reads, []uint64{k.Config.AddrInput1})
		}

		k.prefetch.Push(reads)
		k.readRequest.Push(reads)
		k.drain.Push(writes)
		k.writeRequest.Push(writes)
		k.drain.Delay = append(k.drain.Delay, k.Config.OpType.Latency())
	}

	k.prefetch.Mergable = true
	k.prefetch.Interval = 0
	k.prefetch.Delay = make([]int, k.prefetch.Len())
	k.drain.Mergable = true
	k.drain.Interval = 1
}

func (k *VecOp) operandRow(row []uint64) [][]uint64 {
	var banks [][]uint64

	if k.Config.AddrInput0 != 0 {
		banks = append(banks, offsets(k.Config.AddrInput0, row))
	}

	if k.Config.OpSrc == VV && k.Config.AddrInput1 != 0 {
		banks = append(banks, offsets(k.Config.AddrInput1, row))
	}

	return banks
}

func offsets(base uint64, indices []uint64) []uint64 {
	out := make([]uint64, len(indices))
	for i, idx := range indices {
		out[i] = base + idx*config.ElemSize
	}

	return out
}

// Computation is one operation per element.
func (k *VecOp) Computation() uint64 {
	return k.Config.VectorLength
}

// KernelType returns "VecOp".
func (k *VecOp) KernelType() string {
	return "VecOp"
}
