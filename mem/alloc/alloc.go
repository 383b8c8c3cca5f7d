// Package alloc provides a first-fit allocator of named memory blocks in the
// simulated address space.
package alloc

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// FreeBlockName is the name carried by unallocated blocks.
const FreeBlockName = "0"

// ReservedBlockName names the block that keeps address 0 out of use.
const ReservedBlockName = "occupy"

const elemSize = 8

var (
	// ErrDuplicateBlock is returned when allocating a name that is in use.
	ErrDuplicateBlock = errors.New("block already allocated")

	// ErrOutOfMemory is returned when no free block is large enough.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrBlockNotFound is returned when a name is not allocated.
	ErrBlockNotFound = errors.New("block not found")
)

// A Block is a contiguous part of the address space. End is exclusive.
type Block struct {
	Name  string
	Start uint64
	End   uint64
	Size  uint64
	Free  bool
}

type preloadEntry struct {
	addr   uint64
	length uint64
}

// MemAlloc hands out named blocks of a fixed address space. It is safe for
// concurrent use.
type MemAlloc struct {
	lock sync.RWMutex

	size   uint64
	align  uint64
	blocks []Block

	preloads        []preloadEntry
	numPreloadElems uint64
}

// New creates an allocator over sizeGB gigabytes. Every allocation is
// rounded up to a multiple of align bytes. The first block is reserved so
// that no allocation starts at address 0.
func New(sizeGB, align uint64) *MemAlloc {
	size := sizeGB * 1024 * 1024 * 1024
	m := &MemAlloc{
		size:  size,
		align: align,
		blocks: []Block{{
			Name:  FreeBlockName,
			Start: 0,
			End:   size,
			Size:  size,
			Free:  true,
		}},
	}

	if _, err := m.Alloc(ReservedBlockName, elemSize); err != nil {
		panic(err)
	}

	return m
}

func (m *MemAlloc) find(name string) int {
	return slices.IndexFunc(m.blocks, func(b Block) bool {
		return !b.Free && b.Name == name
	})
}

// Alloc reserves size bytes under name and returns the start address.
func (m *MemAlloc) Alloc(name string, size uint64) (uint64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.find(name) >= 0 {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateBlock, name)
	}

	if size%m.align != 0 {
		size = (size/m.align + 1) * m.align
	}

	idx := slices.IndexFunc(m.blocks, func(b Block) bool {
		return b.Free && b.Size >= size
	})
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q needs %d bytes", ErrOutOfMemory, name, size)
	}

	free := m.blocks[idx]
	m.blocks[idx] = Block{
		Name:  name,
		Start: free.Start,
		End:   free.Start + size,
		Size:  size,
	}

	if free.Size > size {
		rest := Block{
			Name:  FreeBlockName,
			Start: free.Start + size,
			End:   free.End,
			Size:  free.Size - size,
			Free:  true,
		}
		m.blocks = slices.Insert(m.blocks, idx+1, rest)
	}

	return free.Start, nil
}

// MustAlloc is Alloc for callers that treat a failed allocation as a bug.
func (m *MemAlloc) MustAlloc(name string, size uint64) uint64 {
	a, err := m.Alloc(name, size)
	if err != nil {
		panic(err)
	}

	return a
}

// Free releases the block called name and merges it with free neighbours.
func (m *MemAlloc) Free(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	idx := m.find(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrBlockNotFound, name)
	}

	m.blocks[idx].Name = FreeBlockName
	m.blocks[idx].Free = true

	m.coalesce(idx)

	return nil
}

func (m *MemAlloc) coalesce(idx int) {
	if idx > 0 && m.blocks[idx-1].Free {
		m.blocks[idx-1].End = m.blocks[idx].End
		m.blocks[idx-1].Size += m.blocks[idx].Size
		m.blocks = slices.Delete(m.blocks, idx, idx+1)
		idx--
	}

	if idx < len(m.blocks)-1 && m.blocks[idx+1].Free {
		m.blocks[idx].End = m.blocks[idx+1].End
		m.blocks[idx].Size += m.blocks[idx+1].Size
		m.blocks = slices.Delete(m.blocks, idx+1, idx+2)
	}
}

// Addr returns the start address of the block called name.
func (m *MemAlloc) Addr(name string) (uint64, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	idx := m.find(name)
	if idx < 0 {
		return 0, false
	}

	return m.blocks[idx].Start, true
}

// Size returns the aligned size of the block called name.
func (m *MemAlloc) Size(name string) (uint64, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	idx := m.find(name)
	if idx < 0 {
		return 0, false
	}

	return m.blocks[idx].Size, true
}

// NameAt returns the name of the block holding addr.
func (m *MemAlloc) NameAt(addr uint64) string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	for _, b := range m.blocks {
		if b.Start <= addr && addr < b.End {
			return b.Name
		}
	}

	return FreeBlockName
}

// Blocks returns a copy of the block list in address order.
func (m *MemAlloc) Blocks() []Block {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return slices.Clone(m.blocks)
}

// A Snapshot is a copy of the allocator state at one point in time.
type Snapshot struct {
	Capacity        uint64
	Blocks          []Block
	NumPreloads     int
	NumPreloadElems uint64
}

// Snapshot copies the current state.
func (m *MemAlloc) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return Snapshot{
		Capacity:        m.size,
		Blocks:          slices.Clone(m.blocks),
		NumPreloads:     len(m.preloads),
		NumPreloadElems: m.numPreloadElems,
	}
}

// Capacity returns the size of the address space in bytes.
func (m *MemAlloc) Capacity() uint64 {
	return m.size
}

func (m *MemAlloc) preloadIndex(addr uint64) int {
	return sort.Search(len(m.preloads), func(i int) bool {
		return m.preloads[i].addr >= addr
	})
}

// Preload records that numElems elements starting at addr already sit in
// on-chip storage.
func (m *MemAlloc) Preload(addr, numElems uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	i := m.preloadIndex(addr)
	m.preloads = slices.Insert(m.preloads, i,
		preloadEntry{addr: addr, length: numElems * elemSize})
	m.numPreloadElems += numElems
}

// Preloaded tells whether addr falls in a preloaded region.
func (m *MemAlloc) Preloaded(addr uint64) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	i := m.preloadIndex(addr)
	if i < len(m.preloads) && m.preloads[i].addr == addr {
		return true
	}

	if i == 0 {
		return false
	}

	p := m.preloads[i-1]

	return addr >= p.addr && addr < p.addr+p.length
}

// Unpreload forgets the preloaded region that starts exactly at addr.
func (m *MemAlloc) Unpreload(addr uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	i := m.preloadIndex(addr)
	if i >= len(m.preloads) || m.preloads[i].addr != addr {
		return
	}

	m.numPreloadElems -= m.preloads[i].length / elemSize
	m.preloads = slices.Delete(m.preloads, i, i+1)
}

// ClearPreload forgets every preloaded region.
func (m *MemAlloc) ClearPreload() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.preloads = m.preloads[:0]
	m.numPreloadElems = 0
}

// NumPreloadElems returns the number of preloaded elements.
func (m *MemAlloc) NumPreloadElems() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.numPreloadElems
}
