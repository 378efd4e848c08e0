// Package mem implements the physical page allocator (spec component 4.A).
// It owns a free-page stack carved from the RAM region above the kernel
// image and hands out zeroed 4 KiB pages.
package mem

import (
	"sync"

	"riscvkern/src/irq"
	"riscvkern/src/util"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// Pa_t represents a physical address.
type Pa_t uintptr

/// NilPa is the reserved "no frame" physical address, used by process
/// records whose page-table root is nil and by the free-list terminator.
const NilPa Pa_t = 0

/// Allocator_t owns a free-page stack carved from a fixed arena of
/// simulated RAM. alloc/free are O(1); frames are threaded onto the free
/// list through the first 8 bytes of each free frame, per spec 4.A.
type Allocator_t struct {
	sync.Mutex
	arena    []byte
	base     Pa_t
	freehead Pa_t
	owned    []bool // owned[i] == false means frame i is on the free list
	nfree    int
	ntotal   int
	irqctl   irq.Controller
}

/// NewAllocator carves every PGSIZE-aligned frame out of
/// [base, base+len(arena)) and threads them onto the free list.
/// len(arena) must be a multiple of PGSIZE.
func NewAllocator(base Pa_t, arena []byte) *Allocator_t {
	if len(arena) == 0 || len(arena)%PGSIZE != 0 {
		panic("mem: arena is not a whole number of pages")
	}
	npages := len(arena) / PGSIZE
	a := &Allocator_t{
		arena:  arena,
		base:   base,
		owned:  make([]bool, npages),
		ntotal: npages,
		irqctl: irq.NewHostController(),
	}
	a.freehead = NilPa
	for i := npages - 1; i >= 0; i-- {
		pa := base + Pa_t(i*PGSIZE)
		a.setNext(pa, a.freehead)
		a.freehead = pa
		a.nfree++
	}
	return a
}

/// SetIRQController replaces the interrupt-mask seam used to guard
/// AllocPage/FreePage, letting a riscv64 build swap in the real
/// SSTATUS.SIE-backed controller in place of the hosted default.
func (a *Allocator_t) SetIRQController(ctrl irq.Controller) {
	a.irqctl = ctrl
}

func (a *Allocator_t) idx(pa Pa_t) int {
	off := int(pa - a.base)
	if off < 0 || off%PGSIZE != 0 || off/PGSIZE >= a.ntotal {
		panic("mem: physical address out of range")
	}
	return off / PGSIZE
}

/// Frame returns the byte slice backing the given physical frame. It is
/// the kernel's only means of reading or writing physical memory in this
/// hosted model (the analogue of a direct map).
func (a *Allocator_t) Frame(pa Pa_t) []byte {
	i := a.idx(pa)
	return a.arena[i*PGSIZE : i*PGSIZE+PGSIZE]
}

func (a *Allocator_t) setNext(pa Pa_t, next Pa_t) {
	util.Writen64(a.Frame(pa), 0, uint64(next))
}

func (a *Allocator_t) getNext(pa Pa_t) Pa_t {
	return Pa_t(util.Readn64(a.Frame(pa), 0))
}

/// AllocPage pops a frame off the free list, zeroes it, and returns it.
/// It returns ok=false when the pool is exhausted; callers propagate that
/// as OutOfMemory rather than the allocator panicking. The free-list
/// mutation runs with interrupts masked, per spec's concurrency model for
/// allocator state.
func (a *Allocator_t) AllocPage() (pa Pa_t, ok bool) {
	irq.WithoutInterrupts(a.irqctl, func() {
		a.Lock()
		defer a.Unlock()
		if a.nfree == 0 {
			return
		}
		pa = a.freehead
		a.freehead = a.getNext(pa)
		a.nfree--
		i := a.idx(pa)
		a.owned[i] = true
		f := a.Frame(pa)
		for j := range f {
			f[j] = 0
		}
		ok = true
	})
	return pa, ok
}

/// FreePage returns pa to the pool. Freeing a frame that is already on the
/// free list indicates a kernel bug and panics, per spec 4.A/4.7. The
/// free-list mutation runs with interrupts masked, per spec's concurrency
/// model for allocator state.
func (a *Allocator_t) FreePage(pa Pa_t) {
	irq.WithoutInterrupts(a.irqctl, func() {
		a.Lock()
		defer a.Unlock()
		i := a.idx(pa)
		if !a.owned[i] {
			panic("mem: double free of physical frame")
		}
		a.owned[i] = false
		a.setNext(pa, a.freehead)
		a.freehead = pa
		a.nfree++
	})
}

/// Free reports the number of frames currently on the free list.
func (a *Allocator_t) Free() int {
	a.Lock()
	defer a.Unlock()
	return a.nfree
}

/// Total reports the total number of frames managed by this allocator.
func (a *Allocator_t) Total() int {
	return a.ntotal
}
