// Package irq provides the interrupt-disable guard the rest of the kernel
// wraps around queue, table, and allocator mutations (spec's "Concurrency &
// Resource Model": code mutating shared scheduler/process/VM state must
// run with interrupts masked or from inside a trap).
package irq

import "sync"

/// Controller abstracts the CSR-level interrupt mask/restore operations.
/// The riscv64 target implements this over SSTATUS.SIE; the hosted build
/// (tests, host tooling) uses a plain enabled/disabled flag.
type Controller interface {
	// Disable masks interrupts and returns whatever state is needed to
	// restore the prior mask exactly (nesting-safe).
	Disable() (prev uint64)
	Restore(prev uint64)
}

/// hostController is a software stand-in for SSTATUS.SIE: each Disable
/// records whether interrupts were enabled before the call, so nested
/// guards restore correctly.
type hostController struct {
	mu      sync.Mutex
	enabled bool
}

/// NewHostController returns a Controller suitable for tests and
/// non-riscv64 builds, starting with interrupts enabled.
func NewHostController() Controller {
	return &hostController{enabled: true}
}

func (h *hostController) Disable() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var prev uint64
	if h.enabled {
		prev = 1
	}
	h.enabled = false
	return prev
}

func (h *hostController) Restore(prev uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = prev != 0
}

/// WithoutInterrupts runs fn with interrupts masked through ctrl, restoring
/// the prior mask state on return (including on panic), mirroring the
/// source kernel's `without_interrupts { ... }` scope.
func WithoutInterrupts(ctrl Controller, fn func()) {
	prev := ctrl.Disable()
	defer ctrl.Restore(prev)
	fn()
}
