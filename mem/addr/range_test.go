package addr

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Range", func() {
	It("should count both ends", func() {
		Expect(R(5, 5).Length()).To(Equal(uint64(1)))
		Expect(R(0, 9).Length()).To(Equal(uint64(10)))
	})

	It("should report well-formedness", func() {
		Expect(R(3, 3).WellFormed()).To(BeTrue())
		Expect(R(4, 3).WellFormed()).To(BeFalse())
	})

	It("should find overlaps", func() {
		o, ok := R(0, 9).Overlap(R(5, 14))
		Expect(ok).To(BeTrue())
		Expect(o).To(Equal(R(5, 9)))

		_, ok = R(0, 4).Overlap(R(5, 14))
		Expect(ok).To(BeFalse())
	})

	It("should treat touching ends as overlapping", func() {
		o, ok := R(0, 5).Overlap(R(5, 14))
		Expect(ok).To(BeTrue())
		Expect(o).To(Equal(R(5, 5)))
	})

	It("should check containment", func() {
		Expect(R(0, 9).Contains(9)).To(BeTrue())
		Expect(R(0, 9).Contains(10)).To(BeFalse())
		Expect(R(0, 9).IsSupersetOf(R(2, 9))).To(BeTrue())
		Expect(R(0, 9).IsSupersetOf(R(2, 10))).To(BeFalse())
	})

	It("should sum lengths", func() {
		Expect(TotalLength([]Range{R(0, 9), R(20, 20)})).To(Equal(uint64(11)))
		Expect(TotalLength(nil)).To(BeZero())
	})

	It("should clone independently", func() {
		rs := []Range{R(1, 2)}
		c := Clone(rs)
		c[0] = R(7, 8)

		Expect(rs[0]).To(Equal(R(1, 2)))
		Expect(Clone(nil)).To(BeNil())
	})

	It("should print as an interval", func() {
		Expect(R(1, 2).String()).To(Equal("[1, 2]"))
	})
})

var _ = Describe("IdentityTranslator", func() {
	It("should return the input range", func() {
		Expect(IdentityTranslator{}.Translate(R(3, 9))).
			To(Equal([]Range{R(3, 9)}))
	})

	It("should adapt functions", func() {
		t := TranslatorFunc(func(r Range) []Range {
			return []Range{R(r.Start+1, r.End+1)}
		})

		Expect(t.Translate(R(0, 1))).To(Equal([]Range{R(1, 2)}))
	})
})
