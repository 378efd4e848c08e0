// Package trap implements the trap dispatcher (spec component 4.F):
// routing on scause between interrupts and exceptions, handing timer
// interrupts to the scheduler, and turning unrecoverable exceptions into
// a fatal report.
package trap

import (
	"riscvkern/src/sched"
	"riscvkern/src/syscall"
)

/// Scause top-bit-set interrupt codes (spec 4.F).
const (
	IntSoftware = 1
	IntTimer    = 5
	IntExternal = 9
)

/// Scause top-bit-clear exception codes that are fatal in this core; the
/// one exception is ECALL, dispatched to the syscall handler instead.
const (
	ExcLoadMisaligned  = 4
	ExcLoadFault       = 5
	ExcStoreMisaligned = 6
	ExcStoreFault      = 7
	ExcIllegalInstr    = 2
	ExcBreakpoint      = 3
	ExcFetchFault      = 1
	ExcFetchMisaligned = 0
	ExcECallFromU      = 8
)

const interruptBit uint64 = 1 << 63

/// Frame_t is the trap-entry snapshot the dispatcher reasons about:
/// scause/sepc/stval, plus the syscall ABI's a0..a3 registers.
type Frame_t struct {
	Scause uint64
	Sepc   uint64
	Stval  uint64
	A0     uint64 // syscall number on entry; return value on exit
	A1     uint64
	A2     uint64
	A3     uint64
}

/// FatalReporter receives a fatal exception report before the dispatcher
/// halts.
type FatalReporter interface {
	Fatal(scause, sepc, stval uint64)
}

/// Logger receives non-fatal interrupt diagnostics (software/external).
type Logger interface {
	Printf(format string, args ...any)
}

/// PLIC is the external-interrupt claim/complete collaborator, satisfied
/// by *plic.Plic_t. spec.md places driver dispatch on the claimed IRQ out
/// of scope (§9), but the claim/complete handshake itself belongs in the
/// trap path, per spec 4.F's "external (PLIC claim -> route to driver ->
/// PLIC complete)".
type PLIC interface {
	Claim() uint32
	Complete(irq uint32)
}

/// Dispatcher wires trap entry to the scheduler and syscall subsystems.
/// Register-only syscalls (CLOSE/GETPID/YIELD/FORK/EXEC/EXIT) are
/// dispatched directly from the trap frame's a0/a1. READ/WRITE/OPEN need
/// a buffer or path string that only exists once user memory has been
/// copied in; this hosted build has no page-table-backed user memory to
/// copy from, so end-to-end tests for those three call
/// Syscalls.Dispatch directly with a hand-built Request instead of going
/// through Handle.
type Dispatcher struct {
	Sched    *sched.Scheduler_t
	Syscalls *syscall.Dispatcher
	Fatal    FatalReporter
	Log      Logger
	Plic     PLIC
}

/// Handle dispatches one trap. For a timer interrupt it drives the
/// scheduler's tick (and yields if the tick requested it); for software
/// interrupts it only logs; for an external interrupt it claims the IRQ
/// from the PLIC and immediately completes it (no driver in this core
/// consumes the claimed source -- spec.md §9); for ECALL it dispatches to
/// the syscall handler and advances Sepc past the instruction; any other
/// exception is reported as fatal.
func (d *Dispatcher) Handle(f *Frame_t) {
	if f.Scause&interruptBit != 0 {
		code := f.Scause &^ interruptBit
		switch code {
		case IntTimer:
			d.Sched.Tick()
			if d.Sched.YieldRequested {
				d.Sched.Yield()
			}
		case IntSoftware:
			if d.Log != nil {
				d.Log.Printf("software interrupt (IPI), ignored")
			}
		case IntExternal:
			if d.Plic != nil {
				irq := d.Plic.Claim()
				d.Plic.Complete(irq)
			}
		default:
			if d.Log != nil {
				d.Log.Printf("unknown interrupt code %d", code)
			}
		}
		return
	}

	if f.Scause == ExcECallFromU {
		number := int(f.A0)
		ret := d.Syscalls.Dispatch(number, syscall.Request{
			Handle: int(f.A1),
			Code:   int(f.A1),
		})
		f.A0 = uint64(ret)
		f.Sepc += 4
		return
	}

	if d.Fatal != nil {
		d.Fatal.Fatal(f.Scause, f.Sepc, f.Stval)
	}
	panic("trap: fatal exception")
}
