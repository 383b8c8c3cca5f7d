package alloc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemAlloc", func() {
	var m *MemAlloc

	BeforeEach(func() {
		m = New(1, 64)
	})

	It("should keep address 0 reserved", func() {
		a, ok := m.Addr(ReservedBlockName)

		Expect(ok).To(BeTrue())
		Expect(a).To(BeZero())
		Expect(m.MustAlloc("x", 8)).To(Equal(uint64(64)))
	})

	It("should take snapshots that later changes do not touch", func() {
		m.MustAlloc("x", 64)
		m.Preload(64, 8)

		snapshot := m.Snapshot()
		Expect(m.Free("x")).To(Succeed())
		m.ClearPreload()

		Expect(snapshot.Capacity).To(Equal(m.Capacity()))
		Expect(snapshot.Blocks).To(HaveLen(3))
		Expect(snapshot.Blocks[1].Name).To(Equal("x"))
		Expect(snapshot.NumPreloads).To(Equal(1))
		Expect(snapshot.NumPreloadElems).To(Equal(uint64(8)))
		Expect(m.Blocks()).To(HaveLen(2))
	})

	It("should align and place blocks first fit", func() {
		a1 := m.MustAlloc("1", 128)
		a2 := m.MustAlloc("2", 100)
		a3 := m.MustAlloc("3", 128)

		Expect(a1).To(Equal(uint64(64)))
		Expect(a2).To(Equal(uint64(192)))
		Expect(a3).To(Equal(uint64(320)))

		size, ok := m.Size("2")
		Expect(ok).To(BeTrue())
		Expect(size).To(Equal(uint64(128)))
	})

	It("should reuse and coalesce freed blocks", func() {
		m.MustAlloc("1", 128)
		m.MustAlloc("2", 128)
		m.MustAlloc("3", 128)

		Expect(m.Free("2")).To(Succeed())
		Expect(m.Free("1")).To(Succeed())

		Expect(m.MustAlloc("4", 256)).To(Equal(uint64(64)))

		Expect(m.Free("3")).To(Succeed())
		Expect(m.Free("4")).To(Succeed())
		Expect(m.Blocks()).To(HaveLen(2))
		Expect(m.Blocks()[1].Size).To(Equal(m.Capacity() - 64))
	})

	It("should reject duplicate names", func() {
		m.MustAlloc("a", 8)

		_, err := m.Alloc("a", 8)

		Expect(err).To(MatchError(ErrDuplicateBlock))
	})

	It("should allow a freed name again", func() {
		m.MustAlloc("a", 8)
		Expect(m.Free("a")).To(Succeed())

		_, err := m.Alloc("a", 8)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should fail when nothing fits", func() {
		_, err := m.Alloc("huge", m.Capacity())

		Expect(err).To(MatchError(ErrOutOfMemory))
		Expect(func() { m.MustAlloc("huge", m.Capacity()) }).To(Panic())
	})

	It("should fail to free unknown blocks", func() {
		Expect(m.Free("nope")).To(MatchError(ErrBlockNotFound))

		_, ok := m.Addr("nope")
		Expect(ok).To(BeFalse())
	})

	It("should name addresses", func() {
		a := m.MustAlloc("v", 128)

		Expect(m.NameAt(a)).To(Equal("v"))
		Expect(m.NameAt(a + 127)).To(Equal("v"))
		Expect(m.NameAt(a + 128)).To(Equal(FreeBlockName))
	})

	Context("preload table", func() {
		It("should find addresses inside preloaded regions", func() {
			m.Preload(1000, 4)
			m.Preload(100, 2)

			Expect(m.Preloaded(100)).To(BeTrue())
			Expect(m.Preloaded(115)).To(BeTrue())
			Expect(m.Preloaded(116)).To(BeFalse())
			Expect(m.Preloaded(99)).To(BeFalse())
			Expect(m.Preloaded(1031)).To(BeTrue())
			Expect(m.Preloaded(1032)).To(BeFalse())
			Expect(m.NumPreloadElems()).To(Equal(uint64(6)))
		})

		It("should unpreload exact starts only", func() {
			m.Preload(100, 2)

			m.Unpreload(108)
			Expect(m.Preloaded(100)).To(BeTrue())

			m.Unpreload(100)
			Expect(m.Preloaded(100)).To(BeFalse())
			Expect(m.NumPreloadElems()).To(BeZero())
		})

		It("should clear", func() {
			m.Preload(100, 2)
			m.ClearPreload()

			Expect(m.Preloaded(100)).To(BeFalse())
			Expect(m.NumPreloadElems()).To(BeZero())
		})

		It("should report nothing on an empty table", func() {
			Expect(m.Preloaded(0)).To(BeFalse())
		})
	})
})
