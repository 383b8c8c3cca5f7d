package traffic

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zkmemsim/mem/addr"
)

func rs(pairs ...uint64) []addr.Range {
	out := make([]addr.Range, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, addr.R(pairs[i], pairs[i+1]))
	}

	return out
}

var _ = Describe("filterLines", func() {
	var load []addr.Range

	BeforeEach(func() {
		load = make([]addr.Range, 0)
	})

	It("should do nothing without exist ranges", func() {
		next := rs(0, 9, 20, 29)

		filterLines(nil, &next, &load)

		Expect(next).To(Equal(rs(0, 9, 20, 29)))
		Expect(load).To(BeEmpty())
	})

	It("should do nothing without candidates", func() {
		next := rs()

		filterLines(rs(0, 9), &next, &load)

		Expect(next).To(BeEmpty())
		Expect(load).To(BeEmpty())
	})

	It("should leave disjoint candidates alone", func() {
		next := rs(10, 19)

		filterLines(rs(0, 9, 20, 29), &next, &load)

		Expect(next).To(Equal(rs(10, 19)))
		Expect(load).To(BeEmpty())
	})

	It("should remove a fully covered candidate", func() {
		next := rs(0, 9, 20, 29)

		filterLines(rs(0, 9), &next, &load)

		Expect(next).To(Equal(rs(20, 29)))
		Expect(load).To(Equal(rs(0, 9)))
	})

	It("should examine the candidate that moves into a removed slot", func() {
		next := rs(0, 9, 20, 29)

		filterLines(rs(0, 9, 20, 29), &next, &load)

		Expect(next).To(BeEmpty())
		Expect(load).To(Equal(rs(0, 9, 20, 29)))
	})

	It("should trim a covered prefix", func() {
		next := rs(0, 9)

		filterLines(rs(0, 4), &next, &load)

		Expect(next).To(Equal(rs(5, 9)))
		Expect(load).To(Equal(rs(0, 4)))
	})

	It("should trim a covered suffix", func() {
		next := rs(0, 9)

		filterLines(rs(5, 12), &next, &load)

		Expect(next).To(Equal(rs(0, 4)))
		Expect(load).To(Equal(rs(5, 9)))
	})

	It("should split around a covered interior", func() {
		next := rs(0, 9)

		filterLines(rs(3, 5), &next, &load)

		Expect(next).To(Equal(rs(0, 2, 6, 9)))
		Expect(load).To(Equal(rs(3, 5)))
	})

	It("should keep comparing a trimmed candidate", func() {
		next := rs(0, 9)

		filterLines(rs(0, 2, 7, 9), &next, &load)

		Expect(next).To(Equal(rs(3, 6)))
		Expect(load).To(Equal(rs(0, 2, 7, 9)))
	})

	It("should reach tails appended by a split", func() {
		next := rs(0, 9)

		filterLines(rs(3, 5, 8, 8), &next, &load)

		Expect(next).To(Equal(rs(0, 2, 6, 7, 9, 9)))
		Expect(load).To(Equal(rs(3, 5, 8, 8)))
	})

	It("should remove a candidate emptied by successive trims", func() {
		next := rs(0, 9)

		filterLines(rs(0, 4, 5, 9, 0, 9), &next, &load)

		Expect(next).To(BeEmpty())
		Expect(load).To(Equal(rs(0, 4, 5, 9)))
	})

	It("should handle single-address ranges", func() {
		next := rs(5, 5, 6, 6)

		filterLines(rs(5, 5), &next, &load)

		Expect(next).To(Equal(rs(6, 6)))
		Expect(load).To(Equal(rs(5, 5)))
	})

	It("should append to an existing load list", func() {
		load = rs(100, 101)
		next := rs(0, 9)

		filterLines(rs(0, 0), &next, &load)

		Expect(load).To(Equal(rs(100, 101, 0, 0)))
	})

	Context("on random inputs", func() {
		var rng *rand.Rand

		randomRange := func(limit uint64) addr.Range {
			a := uint64(rng.Int63n(int64(limit)))
			b := uint64(rng.Int63n(int64(limit)))

			return addr.R(min(a, b), max(a, b))
		}

		BeforeEach(func() {
			rng = rand.New(rand.NewSource(7))
		})

		It("should keep every remaining range well formed", func() {
			for round := 0; round < 500; round++ {
				exist := make([]addr.Range, rng.Intn(6))
				for i := range exist {
					exist[i] = randomRange(200)
				}

				next := make([]addr.Range, rng.Intn(6))
				for i := range next {
					next[i] = randomRange(200)
				}

				filterLines(exist, &next, &load)

				for _, r := range next {
					Expect(r.WellFormed()).To(BeTrue(), "range %s", r)
				}
			}
		})

		It("should conserve the length of a single candidate", func() {
			for round := 0; round < 500; round++ {
				orig := randomRange(300)
				exist := make([]addr.Range, 1+rng.Intn(6))
				for i := range exist {
					exist[i] = randomRange(300)
				}

				next := []addr.Range{orig}
				load = make([]addr.Range, 0)

				filterLines(exist, &next, &load)

				Expect(addr.TotalLength(next) + addr.TotalLength(load)).
					To(Equal(orig.Length()))

				for _, l := range load {
					Expect(orig.IsSupersetOf(l)).To(BeTrue())

					insideExist := false
					for _, e := range exist {
						if e.IsSupersetOf(l) {
							insideExist = true
						}
					}

					Expect(insideExist).To(BeTrue(), "load %s", l)
				}

				for _, r := range next {
					Expect(orig.IsSupersetOf(r)).To(BeTrue())

					for _, e := range exist {
						_, overlaps := r.Overlap(e)
						Expect(overlaps).To(BeFalse())
					}
				}
			}
		})
	})
})
