package kernel

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zkmemsim/mem/addr"
	"github.com/sarchlab/zkmemsim/mem/traffic"
)

var _ = Describe("MemCpy", func() {
	var k *MemCpy

	BeforeEach(func() {
		k = NewMemCpy(MemCpyConfig{
			AddrInput:   1000,
			AddrOutput:  5000,
			InputLength: 300,
		}, smallArch(), true)
	})

	It("should cut the input into buffer-sized prefetch stages", func() {
		p := k.Prefetch()

		Expect(p.FetchType).To(Equal(traffic.Read))
		Expect(p.Addr).To(Equal([][]addr.Range{
			{addr.R(1000, 2016)},
			{addr.R(2024, 3040)},
			{addr.R(3048, 3392)},
		}))
		Expect(p.Mergable).To(BeTrue())
		Expect(p.Interval).To(BeZero())
		Expect(p.Delay).To(Equal([]int{0, 0, 0}))
		Expect(k.ReadRequest().NumLines).To(Equal([]int{32, 32, 11}))
	})

	It("should drain the output window", func() {
		d := k.Drain()

		Expect(d.FetchType).To(Equal(traffic.Write))
		Expect(d.Len()).To(Equal(3))
		Expect(d.Stage(0)).To(Equal([]addr.Range{addr.R(5000, 6016)}))
		Expect(d.Delay).To(Equal([]int{0, 0, 0}))
		Expect(k.WriteRequest().NumRequestLines()).To(Equal(75))
	})

	It("should hand out independent copies", func() {
		p := k.Prefetch()
		p.Clear()

		Expect(k.Prefetch().Len()).To(Equal(3))
	})

	It("should produce nothing when disabled", func() {
		k = NewMemCpy(k.Config, smallArch(), false)

		Expect(k.Prefetch().Len()).To(Equal(0))
		Expect(k.Drain().Len()).To(Equal(0))
		Expect(k.Computation()).To(BeZero())
		Expect(k.KernelType()).To(Equal("MemCpy"))
	})

	Context("as a translator", func() {
		BeforeEach(func() {
			k = NewMemCpy(MemCpyConfig{
				AddrInput:   1000,
				AddrOutput:  5000,
				InputLength: 10,
			}, smallArch(), false)
		})

		It("should leave ranges outside the window alone", func() {
			Expect(k.Translate(addr.R(100, 200))).
				To(Equal([]addr.Range{addr.R(100, 200)}))
		})

		It("should map the window back and keep the rest", func() {
			Expect(k.Translate(addr.R(4990, 5100))).To(Equal([]addr.Range{
				addr.R(1000, 1079),
				addr.R(4990, 4999),
				addr.R(5080, 5100),
			}))
		})

		It("should map single words at the window edge", func() {
			Expect(k.Translate(addr.R(5079, 5079))).
				To(Equal([]addr.Range{addr.R(1079, 1079)}))
		})

		It("should drive Fetch.AddrTrans", func() {
			f := traffic.NewFetch(traffic.Read)
			f.PushRanges([]addr.Range{addr.R(4990, 5100), addr.R(0, 7)})

			f.AddrTrans(k)

			Expect(f.Stage(0)).To(Equal([]addr.Range{
				addr.R(1000, 1079),
				addr.R(0, 7),
				addr.R(4990, 4999),
				addr.R(5080, 5100),
			}))
		})

		It("should pick the copy that covers a range", func() {
			other := NewMemCpy(MemCpyConfig{
				AddrInput:   9000,
				AddrOutput:  7000,
				InputLength: 10,
			}, smallArch(), false)

			f := traffic.NewFetch(traffic.Read)
			f.PushRanges([]addr.Range{addr.R(7000, 7015), addr.R(5008, 5015)})

			f.AddrTransVec([]addr.Translator{k, other})

			Expect(f.Stage(0)).To(Equal([]addr.Range{
				addr.R(9000, 9015),
				addr.R(1008, 1015),
			}))
		})
	})
})
