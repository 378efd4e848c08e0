// Package sched implements the MLFQ + real-time scheduler (spec component
// 4.E): queue selection, the timer-tick preemption engine, and the
// context-switch transfer.
package sched

import (
	"sync"

	"riscvkern/src/irq"
	"riscvkern/src/proc"
	"riscvkern/src/util"
)

/// NLevels is the number of MLFQ levels.
const NLevels = 4

/// LevelSlices gives each MLFQ level's default time slice in ticks,
/// increasing with level (lower priority, longer slice).
var LevelSlices = [NLevels]int{5, 10, 20, 40}

/// RTSlice is the fixed slice granted to an RR process on each dispatch.
const RTSlice = 10

/// BoostPeriod is how often (in ticks) every Normal process in a
/// sub-L0 level is promoted back to L0 to prevent starvation.
const BoostPeriod = 100

/// Installer installs a process's page-table root into the MMU on a
/// context switch.
type Installer interface {
	InstallSatp(mode uint8, rootPPN uint64)
	SfenceVMA()
}

type rtEntry struct {
	p   *proc.Proc_t
	seq uint64
}

/// Scheduler_t is a single-CPU scheduler instance: one RT queue, N MLFQ
/// levels, and a dedicated idle task that is never enqueued.
type Scheduler_t struct {
	sync.Mutex

	rt   []rtEntry
	mlfq [NLevels][]*proc.Proc_t
	idle *proc.Proc_t

	current *proc.Proc_t
	install Installer
	irqctl  irq.Controller

	tick      int64
	idleTicks int64
	busyTicks int64
	seq       uint64

	// YieldRequested is set by Tick when the current process's slice has
	// expired; the trap dispatcher checks it after Tick returns and calls
	// Yield if set.
	YieldRequested bool
}

/// New returns a scheduler with idle as its per-CPU idle task. idle must
/// have Policy == proc.Idle and is never placed in any queue.
func New(idle *proc.Proc_t, install Installer) *Scheduler_t {
	if idle.Policy != proc.Idle {
		panic("sched: idle task must have policy Idle")
	}
	idle.State = proc.Running
	return &Scheduler_t{idle: idle, current: idle, install: install, irqctl: irq.NewHostController()}
}

/// SetIRQController replaces the interrupt-mask seam used to guard Tick,
/// Yield, and the context switch, letting a riscv64 build swap in the
/// real SSTATUS.SIE-backed controller in place of the hosted default.
func (s *Scheduler_t) SetIRQController(ctrl irq.Controller) {
	s.irqctl = ctrl
}

/// Add enqueues p according to its policy. Idle processes are rejected:
/// the idle task is implicit and never queued.
func (s *Scheduler_t) Add(p *proc.Proc_t) {
	if p.Policy == proc.Idle {
		panic("sched: Idle may not be added to a queue")
	}
	s.Lock()
	defer s.Unlock()
	s.addLocked(p)
}

func (s *Scheduler_t) addLocked(p *proc.Proc_t) {
	p.State = proc.Runnable
	if p.Policy.IsRT() {
		if p.Policy == proc.RR && p.Slice <= 0 {
			p.Slice = RTSlice
		}
		s.seq++
		s.rtInsert(rtEntry{p: p, seq: s.seq})
		return
	}
	if p.Slice <= 0 {
		p.Slice = LevelSlices[p.MLFQLevel]
	}
	s.mlfq[p.MLFQLevel] = append(s.mlfq[p.MLFQLevel], p)
}

// rtInsert keeps s.rt ordered by ascending priority (0 = highest), with
// stable FIFO ordering (by seq) among equal priorities.
func (s *Scheduler_t) rtInsert(e rtEntry) {
	i := 0
	for i < len(s.rt) && s.rt[i].p.DynamicPrio <= e.p.DynamicPrio {
		i++
	}
	s.rt = append(s.rt, rtEntry{})
	copy(s.rt[i+1:], s.rt[i:])
	s.rt[i] = e
}

func (s *Scheduler_t) popRT() *proc.Proc_t {
	if len(s.rt) == 0 {
		return nil
	}
	e := s.rt[0]
	s.rt = s.rt[1:]
	return e.p
}

func (s *Scheduler_t) popMLFQHead() *proc.Proc_t {
	for level := 0; level < NLevels; level++ {
		q := s.mlfq[level]
		if len(q) == 0 {
			continue
		}
		p := q[0]
		s.mlfq[level] = q[1:]
		return p
	}
	return nil
}

/// Next returns the process that should run next: the RT queue head if
/// non-empty, else the lowest-index non-empty MLFQ level's head, else the
/// idle task. It does not mutate scheduler state.
func (s *Scheduler_t) Next() *proc.Proc_t {
	s.Lock()
	defer s.Unlock()
	return s.peekNextLocked()
}

func (s *Scheduler_t) peekNextLocked() *proc.Proc_t {
	if len(s.rt) > 0 {
		return s.rt[0].p
	}
	for level := 0; level < NLevels; level++ {
		if len(s.mlfq[level]) > 0 {
			return s.mlfq[level][0]
		}
	}
	return s.idle
}

func (s *Scheduler_t) popNextLocked() *proc.Proc_t {
	if p := s.popRT(); p != nil {
		return p
	}
	if p := s.popMLFQHead(); p != nil {
		return p
	}
	return s.idle
}

/// Current returns the presently running process.
func (s *Scheduler_t) Current() *proc.Proc_t {
	s.Lock()
	defer s.Unlock()
	return s.current
}

/// Tick advances the global tick counter, updates accounting for the
/// current process, and drives the preemption engine (spec 4.E "Timer
/// tick"). Callers must inspect YieldRequested after Tick returns and
/// invoke Yield if it is set. The queue/accounting mutation runs with
/// interrupts masked, per spec's concurrency model for scheduler state.
func (s *Scheduler_t) Tick() {
	irq.WithoutInterrupts(s.irqctl, func() {
		s.Lock()
		defer s.Unlock()
		s.tick++
		cur := s.current
		if cur == s.idle {
			s.idleTicks++
		} else {
			s.busyTicks++
			cur.Acct.AddTicks(1)
		}

		s.YieldRequested = false
		if cur.Policy == proc.FIFO {
			return
		}
		if cur == s.idle {
			// The idle task runs only while every queue is empty.
			s.YieldRequested = s.peekNextLocked() != s.idle
			return
		}

		cur.Slice--
		if cur.Slice <= 0 {
			switch cur.Policy {
			case proc.Normal:
				if cur.MLFQLevel < NLevels-1 {
					cur.MLFQLevel++
				}
				cur.DynamicPrio = proc.PrioNormalMin + cur.MLFQLevel
				cur.Slice = LevelSlices[cur.MLFQLevel]
			case proc.RR:
				cur.Slice = RTSlice
			}
			s.YieldRequested = true
		}

		if s.tick%BoostPeriod == 0 {
			s.boostLocked()
		}
	})
}

// boostLocked promotes every queued Normal process to L0, per spec 4.E
// step 5 (periodic anti-starvation boost). The currently running process
// is boosted too, since it will be re-queued at its (possibly demoted)
// level on its next yield otherwise.
func (s *Scheduler_t) boostLocked() {
	for level := 1; level < NLevels; level++ {
		for _, p := range s.mlfq[level] {
			p.MLFQLevel = 0
			p.DynamicPrio = proc.PrioNormalMin
			p.Slice = LevelSlices[0]
			s.mlfq[0] = append(s.mlfq[0], p)
		}
		s.mlfq[level] = nil
	}
	if s.current != s.idle && s.current.Policy == proc.Normal {
		s.current.MLFQLevel = 0
		s.current.DynamicPrio = proc.PrioNormalMin
		s.current.Slice = LevelSlices[0]
	}
}

/// Yield detaches the current process, marks it Runnable, re-enqueues it
/// (unless it is the idle task), selects Next(), and performs the context
/// transfer. It returns the process that is now current. The queue
/// mutation and context switch run with interrupts masked, per spec's
/// concurrency model for scheduler state.
func (s *Scheduler_t) Yield() *proc.Proc_t {
	var next *proc.Proc_t
	irq.WithoutInterrupts(s.irqctl, func() {
		s.Lock()
		defer s.Unlock()
		old := s.current
		if old != s.idle {
			old.State = proc.Runnable
			s.addLocked(old)
		} else {
			old.State = proc.Runnable
		}
		next = s.popNextLocked()
		s.switchLocked(old, next)
	})
	return next
}

// switchLocked performs the context transfer described in spec 4.E:
// install the new page table, record dispatch bookkeeping, and bump the
// new process's context-switch counter (counted on switch-in, per the
// resolved open question -- see the scheduler entry in DESIGN.md).
func (s *Scheduler_t) switchLocked(old, next *proc.Proc_t) {
	next.State = proc.Running
	next.LastCPU = 0
	next.Acct.Switchin(s.tick)
	if s.install != nil && next.PTRoot != 0 {
		s.install.InstallSatp(8, uint64(next.PTRoot)>>12)
		s.install.SfenceVMA()
	}
	s.current = next
	_ = old
}

/// SetPriority clamps v to [0, 139], sets both the static and dynamic
/// priority of p, and, for a process currently in the Normal policy,
/// rederives its MLFQLevel from the new priority (spec's
/// "Priority->queue-level derivation" -- see SPEC_FULL.md section 3). This only biases
/// the process's *next* enqueue: it does not move a currently-queued
/// process across levels.
func SetPriority(p *proc.Proc_t, v int) {
	v = util.Clamp(v, proc.PrioRTMin, proc.PrioNormalMax)
	p.StaticPrio = v
	p.DynamicPrio = v
	if p.Policy == proc.Normal && v >= proc.PrioNormalMin {
		const normalRange = proc.PrioNormalMax - proc.PrioNormalMin + 1
		level := (v - proc.PrioNormalMin) * NLevels / normalRange
		p.MLFQLevel = util.Clamp(level, 0, NLevels-1)
	}
}

/// SetPolicy changes p's policy. Switching to an RT policy while p's
/// priority is out of RT range resets it to PrioRTDefault; switching to
/// Idle sets priority to PrioIdle.
func SetPolicy(p *proc.Proc_t, pol proc.Policy_t) {
	p.Policy = pol
	if pol.IsRT() && (p.DynamicPrio < proc.PrioRTMin || p.DynamicPrio > proc.PrioRTMax) {
		p.StaticPrio = proc.PrioRTDefault
		p.DynamicPrio = proc.PrioRTDefault
	}
	if pol == proc.Idle {
		p.StaticPrio = proc.PrioIdle
		p.DynamicPrio = proc.PrioIdle
	}
}

/// IdleTicks reports how many ticks the CPU has spent idle.
func (s *Scheduler_t) IdleTicks() int64 {
	s.Lock()
	defer s.Unlock()
	return s.idleTicks
}

/// BusyTicks reports how many ticks the CPU has spent running a
/// non-idle process.
func (s *Scheduler_t) BusyTicks() int64 {
	s.Lock()
	defer s.Unlock()
	return s.busyTicks
}

/// Ticks reports the global tick count.
func (s *Scheduler_t) Ticks() int64 {
	s.Lock()
	defer s.Unlock()
	return s.tick
}
