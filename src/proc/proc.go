// Package proc implements the process table (spec component 4.D): a fixed
// array of slots, a monotonic identifier counter, and the per-process
// scheduling and accounting fields the scheduler and trap dispatcher read
// and mutate.
package proc

import (
	"sync"
	"sync/atomic"

	"riscvkern/src/mem"
)

/// NSLOTS is the size of the process table.
const NSLOTS = 64

/// Pid_t identifies a process. Identifiers are monotonic and never
/// recycled within a run, even though table slots are reused.
type Pid_t int64

/// State_t is a process's lifecycle state.
type State_t int

const (
	Unused State_t = iota
	Runnable
	Running
	Sleeping
	Zombie
)

func (s State_t) String() string {
	switch s {
	case Unused:
		return "unused"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Zombie:
		return "zombie"
	default:
		return "invalid"
	}
}

/// Policy_t is a scheduling policy.
type Policy_t int

const (
	Normal Policy_t = iota
	FIFO
	RR
	Idle
)

func (p Policy_t) String() string {
	switch p {
	case Normal:
		return "normal"
	case FIFO:
		return "fifo"
	case RR:
		return "rr"
	case Idle:
		return "idle"
	default:
		return "invalid"
	}
}

/// IsRT reports whether the policy belongs to the real-time class.
func (p Policy_t) IsRT() bool { return p == FIFO || p == RR }

/// Priority bounds, per spec 4.E: 0..99 is real-time, 100..139 is normal.
const (
	PrioRTMin     = 0
	PrioRTMax     = 99
	PrioNormalMin = 100
	PrioNormalMax = 139
	PrioDefault   = 120
	PrioRTDefault = 50
	PrioIdle      = 139
)

/// Context_t holds the callee-save architectural registers preserved
/// across a context switch, plus the stack pointer the switch resumes on.
type Context_t struct {
	Ra uint64
	Sp uint64
	S  [12]uint64 // s0..s11
}

/// Accnt_t accumulates per-process accounting information: CPU ticks
/// consumed and how many times this process has been switched in.
type Accnt_t struct {
	sync.Mutex
	CPUTicks    int64
	CtxSwitches int64
	LastRunTick int64
}

/// AddTicks merges delta ticks into the CPU-time counter.
func (a *Accnt_t) AddTicks(delta int64) {
	atomic.AddInt64(&a.CPUTicks, delta)
}

/// Switchin records a switch-in event at tick.
func (a *Accnt_t) Switchin(tick int64) {
	atomic.AddInt64(&a.CtxSwitches, 1)
	atomic.StoreInt64(&a.LastRunTick, tick)
}

/// Proc_t is one process table slot.
type Proc_t struct {
	Pid   Pid_t
	State State_t

	Policy       Policy_t
	StaticPrio   int
	DynamicPrio  int
	MLFQLevel    int
	Slice        int
	LastCPU      int // -1 means none
	AffinityMask uint64

	PTRoot mem.Pa_t // nil (mem.NilPa) for kernel-only tasks
	Ctx    Context_t

	Acct Accnt_t
}

/// Table_t is the fixed-size process table.
type Table_t struct {
	sync.Mutex
	slots   [NSLOTS]Proc_t
	nextPid Pid_t
}

/// NewTable returns an empty process table with every slot Unused.
func NewTable() *Table_t {
	t := &Table_t{}
	for i := range t.slots {
		t.slots[i].State = Unused
	}
	return t
}

/// Alloc claims the first Unused slot, assigns it a fresh pid, and resets
/// its scheduling/accounting fields to the defaults in spec 4.D. It
/// returns nil if the table is full.
func (t *Table_t) Alloc() *Proc_t {
	t.Lock()
	defer t.Unlock()
	for i := range t.slots {
		p := &t.slots[i]
		if p.State != Unused {
			continue
		}
		t.nextPid++
		*p = Proc_t{
			Pid:          t.nextPid,
			State:        Runnable,
			Policy:       Normal,
			StaticPrio:   PrioDefault,
			DynamicPrio:  PrioDefault,
			MLFQLevel:    0,
			Slice:        0,
			LastCPU:      -1,
			AffinityMask: ^uint64(0),
			PTRoot:       mem.NilPa,
		}
		return p
	}
	return nil
}

/// Free resets p to Unused. The pid is not reused.
func (t *Table_t) Free(p *Proc_t) {
	t.Lock()
	defer t.Unlock()
	pid := p.Pid
	*p = Proc_t{Pid: pid, State: Unused}
}

/// SetupContext initializes a fresh task's saved return address and
/// stack pointer; all other callee-save registers start zeroed.
func SetupContext(p *Proc_t, entry, stackTop uint64) {
	p.Ctx = Context_t{Ra: entry, Sp: stackTop}
}

/// Find returns the slot for pid, or nil if it is not present (freed,
/// never allocated, or never existed).
func (t *Table_t) Find(pid Pid_t) *Proc_t {
	t.Lock()
	defer t.Unlock()
	for i := range t.slots {
		if t.slots[i].State != Unused && t.slots[i].Pid == pid {
			return &t.slots[i]
		}
	}
	return nil
}

/// All returns every non-Unused slot, for diagnostics.
func (t *Table_t) All() []*Proc_t {
	t.Lock()
	defer t.Unlock()
	var out []*Proc_t
	for i := range t.slots {
		if t.slots[i].State != Unused {
			out = append(out, &t.slots[i])
		}
	}
	return out
}
