// Package plic is a stub for the Platform-Level Interrupt Controller at
// MMIO 0x0C00_0000. The external-interrupt path is out of scope for this
// core (spec 9, "Open questions": claim/dispatch/complete is logged only);
// this package exists so the trap dispatcher has a concrete claim/complete
// pair to call without every caller hand-rolling a no-op.
package plic

/// Logger receives claim/complete diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

/// Plic_t is a logging-only stand-in for the PLIC.
type Plic_t struct {
	Log Logger
}

/// New returns a Plic_t that logs through log.
func New(log Logger) *Plic_t {
	return &Plic_t{Log: log}
}

/// Claim would normally read the claim register to identify the pending
/// IRQ; here it just logs and returns 0 (no source), since no driver in
/// this core consumes external interrupts.
func (p *Plic_t) Claim() uint32 {
	if p.Log != nil {
		p.Log.Printf("plic: claim (stub, no driver registered)")
	}
	return 0
}

/// Complete would normally write the completion register; here it logs.
func (p *Plic_t) Complete(irq uint32) {
	if p.Log != nil {
		p.Log.Printf("plic: complete irq=%d (stub)", irq)
	}
}
