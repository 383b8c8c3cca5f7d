package kernel

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/mem/addr"
)

// MemCpyConfig describes a copy of InputLength elements.
type MemCpyConfig struct {
	AddrInput   uint64
	AddrOutput  uint64
	InputLength uint64
}

// MemCpy copies a vector. Besides its own traffic, it can tell where data in
// its output window came from, so it also serves as an addr.Translator.
type MemCpy struct {
	Base

	Config MemCpyConfig
}

// NewMemCpy creates a MemCpy. A disabled kernel has no traffic.
func NewMemCpy(
	cfg MemCpyConfig,
	arch config.ArchConfig,
	enable bool,
) *MemCpy {
	k := &MemCpy{
		Base:   NewBase(),
		Config: cfg,
	}

	if enable {
		k.createPrefetch(arch)
		k.createDrain(arch)
	}

	logrus.Debugf("MemCpy kernel %+v, %d stages", cfg, k.prefetch.Len())

	return k
}

func (k *MemCpy) createPrefetch(arch config.ArchConfig) {
	addrs := elementAddrs(k.Config.AddrInput, k.Config.InputLength)
	for _, banks := range stages(addrs, arch) {
		k.prefetch.Push(banks)
		k.readRequest.Push(banks)
	}

	k.prefetch.Mergable = true
	k.prefetch.Interval = 0
	k.prefetch.Delay = make([]int, k.prefetch.Len())
}

func (k *MemCpy) createDrain(arch config.ArchConfig) {
	addrs := elementAddrs(k.Config.AddrOutput, k.Config.InputLength)
	for _, banks := range stages(addrs, arch) {
		k.drain.Push(banks)
		k.writeRequest.Push(banks)
	}

	k.drain.Mergable = true
	k.drain.Interval = 0
	k.drain.Delay = make([]int, k.drain.Len())
}

// Computation is zero, a copy moves data only.
func (k *MemCpy) Computation() uint64 {
	return 0
}

// KernelType returns "MemCpy".
func (k *MemCpy) KernelType() string {
	return "MemCpy"
}

// Translate maps the part of r that lies in the output window back to the
// input window. The translated overlap comes first, followed by the parts of
// r before and after the window. A range outside the window is returned
// unchanged.
func (k *MemCpy) Translate(r addr.Range) []addr.Range {
	if k.Config.InputLength == 0 {
		return []addr.Range{r}
	}

	window := addr.Range{
		Start: k.Config.AddrOutput,
		End:   k.Config.AddrOutput + k.Config.InputLength*config.ElemSize - 1,
	}

	o, ok := r.Overlap(window)
	if !ok {
		return []addr.Range{r}
	}

	toInput := func(a uint64) uint64 {
		return a - k.Config.AddrOutput + k.Config.AddrInput
	}

	res := []addr.Range{{Start: toInput(o.Start), End: toInput(o.End)}}
	if r.Start < o.Start {
		res = append(res, addr.Range{Start: r.Start, End: o.Start - 1})
	}

	if r.End > o.End {
		res = append(res, addr.Range{Start: o.End + 1, End: r.End})
	}

	return res
}
