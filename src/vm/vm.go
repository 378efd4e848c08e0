// Package vm implements SV39 virtual memory (spec component 4.C): building
// the kernel identity map, walking/installing/tearing down per-process
// 3-level page tables, and translating addresses.
package vm

import (
	"unsafe"

	"riscvkern/src/defs"
	"riscvkern/src/mem"
	"riscvkern/src/util"
)

/// Pte_t is a single 64-bit SV39 page table entry.
type Pte_t uint64

/// Pmap_t is a 512-entry page-table node.
type Pmap_t [512]Pte_t

/// PTE permission/status bits.
const (
	PTE_V Pte_t = 1 << 0 /// valid
	PTE_R Pte_t = 1 << 1 /// readable
	PTE_W Pte_t = 1 << 2 /// writable
	PTE_X Pte_t = 1 << 3 /// executable
	PTE_U Pte_t = 1 << 4 /// user accessible
	PTE_G Pte_t = 1 << 5 /// global
	PTE_A Pte_t = 1 << 6 /// accessed
	PTE_D Pte_t = 1 << 7 /// dirty
)

/// MAXVA is half of SV39's 512 GiB address space; requests at or beyond
/// this bound are rejected.
const MAXVA uint64 = 1 << 38

/// KERNBASE is the fixed physical/virtual load address of the kernel image.
const KERNBASE mem.Pa_t = 0x8000_0000

/// KernelImageSize is the span of the kernel's identity-mapped R W X range.
const KernelImageSize = 128 * 1024 * 1024

/// PHYSTOP is the top of physical RAM modeled by this kernel (128 MiB).
const PHYSTOP = KERNBASE + KernelImageSize

/// MMIO ranges identity-mapped into the kernel root at init, per spec 4.C.
const (
	UARTBase  mem.Pa_t = 0x1000_0000
	UARTSize           = 0x1000 // one page
	PLICBase  mem.Pa_t = 0x0C00_0000
	PLICSize           = 64 * 1024 * 1024
	CLINTBase mem.Pa_t = 0x0200_0000
	CLINTSize          = 64 * 1024
)

/// Valid reports whether the entry is present.
func (p Pte_t) Valid() bool { return p&PTE_V != 0 }

/// IsLeaf reports whether the entry maps a physical frame directly, as
/// opposed to pointing at a lower-level page-table node.
func (p Pte_t) IsLeaf() bool { return p&(PTE_R|PTE_W|PTE_X) != 0 }

/// Pa extracts the physical frame number encoded in the entry.
func (p Pte_t) Pa() mem.Pa_t { return mem.Pa_t((p >> 10) << 12) }

func pa2pte(pa mem.Pa_t) Pte_t { return Pte_t(pa>>12) << 10 }

// px extracts the 9-bit index for the given SV39 level (0, 1, or 2) from a
// virtual address.
func px(level uint, va uintptr) uintptr {
	shift := 12 + 9*level
	return (va >> shift) & 0x1ff
}

/// FrameSource is the allocator seam VM needs: a source of zeroed 4 KiB
/// frames addressable as byte slices, satisfied by *mem.Allocator_t.
type FrameSource interface {
	AllocPage() (mem.Pa_t, bool)
	FreePage(mem.Pa_t)
	Frame(mem.Pa_t) []byte
}

/// Platform abstracts the CSR writes that install a root page table. The
/// real riscv64 target implements this with SATP/SFENCE.VMA; the hosted
/// build (used for tests and for host tooling) just records the value.
type Platform interface {
	InstallSatp(mode uint8, rootPPN uint64)
	SfenceVMA()
}

/// VM_t is the kernel's page-table manager: every Walk/Map/Unmap/Free call
/// goes through one of these, bound to a frame source.
type VM_t struct {
	Alloc FrameSource
}

/// New returns a VM_t drawing page-table frames from alloc.
func New(alloc FrameSource) *VM_t {
	return &VM_t{Alloc: alloc}
}

func (v *VM_t) pmap(pa mem.Pa_t) *Pmap_t {
	f := v.Alloc.Frame(pa)
	return (*Pmap_t)(unsafe.Pointer(&f[0]))
}

/// Walk descends level 2->1->0, following interior entries and, when
/// alloc is true, installing freshly zeroed interior nodes for missing
/// levels. It returns a pointer to the level-0 entry, or nil if the walk
/// cannot continue (either alloc is false and an entry is missing, or
/// va is beyond MAXVA). An allocation failure while alloc is true is
/// reported as -defs.ENOMEM.
func (v *VM_t) Walk(root mem.Pa_t, va uintptr, alloc bool) (*Pte_t, defs.Err_t) {
	if uint64(va) >= MAXVA {
		return nil, 0
	}
	cur := root
	for level := 2; level > 0; level-- {
		pm := v.pmap(cur)
		idx := px(uint(level), va)
		pte := &pm[idx]
		if pte.Valid() {
			if pte.IsLeaf() {
				panic("vm: walk descended into a leaf entry")
			}
			cur = pte.Pa()
			continue
		}
		if !alloc {
			return nil, 0
		}
		npa, ok := v.Alloc.AllocPage()
		if !ok {
			return nil, -defs.ENOMEM
		}
		*pte = pa2pte(npa) | PTE_V
		cur = npa
	}
	pm := v.pmap(cur)
	idx := px(0, va)
	return &pm[idx], 0
}

/// MapPages installs mappings for [va, va+size) -> [pa, pa+size), rounding
/// both ends down to page boundaries. Re-mapping an already-valid entry is
/// a fatal kernel bug (spec 4.C/7) and panics; allocation failure while
/// walking propagates as -defs.ENOMEM.
func (v *VM_t) MapPages(root mem.Pa_t, va uintptr, size uintptr, pa mem.Pa_t, perm Pte_t) defs.Err_t {
	if size == 0 {
		panic("vm: MapPages with zero size")
	}
	pgsize := uintptr(mem.PGSIZE)
	a := util.Rounddown(va, pgsize)
	last := util.Rounddown(va+size-1, pgsize)
	for {
		pte, err := v.Walk(root, a, true)
		if err != 0 {
			return err
		}
		if pte == nil {
			return -defs.EFAULT
		}
		if pte.Valid() {
			panic("vm: MapPages remap of a live entry")
		}
		*pte = pa2pte(pa) | perm | PTE_V
		if a == last {
			break
		}
		a += pgsize
		pa += mem.Pa_t(pgsize)
	}
	return 0
}

/// UnmapPages clears mappings for [va, va+size). A missing mapping
/// indicates a kernel bug and panics (spec 4.C/7).
func (v *VM_t) UnmapPages(root mem.Pa_t, va uintptr, size uintptr) {
	if size == 0 {
		return
	}
	pgsize := uintptr(mem.PGSIZE)
	a := util.Rounddown(va, pgsize)
	last := util.Rounddown(va+size-1, pgsize)
	for {
		pte, _ := v.Walk(root, a, false)
		if pte == nil || !pte.Valid() {
			panic("vm: UnmapPages of an unmapped page")
		}
		*pte = 0
		if a == last {
			break
		}
		a += pgsize
	}
}

/// WalkAddr translates va to its physical address, or 0 if unmapped,
/// invalid, or beyond MAXVA.
func (v *VM_t) WalkAddr(root mem.Pa_t, va uintptr) mem.Pa_t {
	if uint64(va) >= MAXVA {
		return 0
	}
	pte, _ := v.Walk(root, va, false)
	if pte == nil || !pte.Valid() {
		return 0
	}
	return pte.Pa()
}

/// NewRoot allocates and zeroes a fresh top-level page-table node, for a
/// new process address space or the kernel map.
func (v *VM_t) NewRoot() (mem.Pa_t, bool) {
	return v.Alloc.AllocPage()
}

/// Free performs a post-order teardown of root: every interior entry is
/// recursed into and its frame freed; leaf pages (owned by something else
/// -- a process's user mapping, etc.) are left untouched, per spec 4.C.
func (v *VM_t) Free(root mem.Pa_t) {
	pm := v.pmap(root)
	for _, pte := range pm {
		if pte.Valid() && !pte.IsLeaf() {
			v.Free(pte.Pa())
		}
	}
	v.Alloc.FreePage(root)
}

/// InitKernelMap builds the kernel's identity map: the kernel image R W X,
/// and the UART/PLIC/CLINT MMIO windows R W, per the table in spec 4.C.
func (v *VM_t) InitKernelMap() (mem.Pa_t, defs.Err_t) {
	root, ok := v.NewRoot()
	if !ok {
		return 0, -defs.ENOMEM
	}
	ranges := []struct {
		va   mem.Pa_t
		size uintptr
		pa   mem.Pa_t
		perm Pte_t
	}{
		{KERNBASE, KernelImageSize, KERNBASE, PTE_R | PTE_W | PTE_X},
		{UARTBase, UARTSize, UARTBase, PTE_R | PTE_W},
		{PLICBase, PLICSize, PLICBase, PTE_R | PTE_W},
		{CLINTBase, CLINTSize, CLINTBase, PTE_R | PTE_W},
	}
	for _, r := range ranges {
		if err := v.MapPages(root, uintptr(r.va), r.size, r.pa, r.perm); err != 0 {
			return 0, err
		}
	}
	return root, 0
}

/// Install writes SATP for root (SV39 mode) through plat and issues the
/// required SFENCE.VMA.
func Install(plat Platform, root mem.Pa_t) {
	plat.InstallSatp(8, uint64(root)>>12) // mode 8 == Sv39
	plat.SfenceVMA()
}
