package sched

import (
	"testing"

	"riscvkern/src/proc"
)

type fakeInstaller struct {
	lastPPN uint64
	fences  int
}

func (f *fakeInstaller) InstallSatp(mode uint8, ppn uint64) { f.lastPPN = ppn }
func (f *fakeInstaller) SfenceVMA()                         { f.fences++ }

func newIdle(tbl *proc.Table_t) *proc.Proc_t {
	idle := tbl.Alloc()
	SetPolicy(idle, proc.Idle)
	return idle
}

func TestNextReturnsIdleWhenEmpty(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), nil)
	if s.Next() != s.idle {
		t.Fatal("expected idle task when no queues are populated")
	}
}

func TestRTPreemptsNormal(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), &fakeInstaller{})

	normal := tbl.Alloc()
	s.Add(normal)
	got := s.Yield()
	if got != normal {
		t.Fatalf("expected normal process to run first, got pid %d", got.Pid)
	}

	rt := tbl.Alloc()
	SetPolicy(rt, proc.RR)
	SetPriority(rt, 50)
	s.Add(rt)

	if s.Next() != rt {
		t.Fatal("expected RT process to be selected ahead of a running Normal process")
	}
}

func TestStableFIFOAtEqualRTPriority(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), nil)
	var ps []*proc.Proc_t
	for i := 0; i < 3; i++ {
		p := tbl.Alloc()
		SetPolicy(p, proc.FIFO)
		SetPriority(p, 10)
		ps = append(ps, p)
		s.Add(p)
	}
	for _, want := range ps {
		got := s.popNextLocked2ForTest()
		if got != want {
			t.Fatalf("expected FIFO order pid %d, got pid %d", want.Pid, got.Pid)
		}
	}
}

func TestMLFQFairnessOverManyTicks(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), &fakeInstaller{})
	var ps []*proc.Proc_t
	for i := 0; i < 3; i++ {
		p := tbl.Alloc()
		ps = append(ps, p)
		s.Add(p)
	}
	s.Yield() // dispatch the first one

	const T = 3000
	for i := 0; i < T; i++ {
		s.Tick()
		if s.YieldRequested {
			s.Yield()
		}
	}
	// Every process should have accumulated roughly T/n ticks, within a
	// couple of slices of slack.
	n := int64(len(ps))
	want := int64(T) / n
	for _, p := range ps {
		diff := p.Acct.CPUTicks - want
		if diff < 0 {
			diff = -diff
		}
		if diff > int64(LevelSlices[NLevels-1])*2 {
			t.Fatalf("pid %d cpu_time = %d, want near %d", p.Pid, p.Acct.CPUTicks, want)
		}
	}
}

func TestBoostPreventsStarvation(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), &fakeInstaller{})

	// Place a process directly at the bottom MLFQ level, as if it had
	// been repeatedly demoted, and queue it behind some other runnable
	// process so it sits waiting rather than running.
	victim := tbl.Alloc()
	victim.MLFQLevel = NLevels - 1
	victim.Slice = LevelSlices[NLevels-1]
	s.Add(victim)

	runner := tbl.Alloc()
	s.Add(runner)
	s.Yield() // runner becomes current; victim stays queued at the bottom level

	for i := 0; i < BoostPeriod; i++ {
		s.Tick()
		if s.YieldRequested {
			s.Yield()
		}
	}
	if victim.MLFQLevel != 0 {
		t.Fatalf("expected periodic boost to restore victim to L0, got level %d", victim.MLFQLevel)
	}
}

func TestPriorityInversionAvoided(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), &fakeInstaller{})

	p1 := tbl.Alloc()
	SetPriority(p1, 120)
	s.Add(p1)
	s.Yield()
	if s.current != p1 {
		t.Fatal("expected p1 running")
	}

	p2 := tbl.Alloc()
	SetPolicy(p2, proc.RR)
	SetPriority(p2, 50)
	s.Add(p2)

	// Drain p1's slice. SetPriority(120) rederives p1's level as
	// (120-100)*NLevels/40 = 2, so the slice is LevelSlices[2].
	slice := p1.Slice
	for i := 0; i < slice; i++ {
		s.Tick()
	}
	if !s.YieldRequested {
		t.Fatal("expected slice expiry to request a yield")
	}
	s.Yield()
	if s.current != p2 {
		t.Fatal("expected RT process p2 to be selected after p1's slice expired")
	}
	before := p1.Acct.CPUTicks
	s.Tick()
	if p1.Acct.CPUTicks != before {
		t.Fatal("p1's cpu_time must not increment while p2 is running")
	}
}

func TestSetPolicyToRTResetsOutOfRangePriority(t *testing.T) {
	tbl := proc.NewTable()
	p := tbl.Alloc() // DynamicPrio 120, Normal range
	SetPolicy(p, proc.RR)
	if p.DynamicPrio != proc.PrioRTDefault {
		t.Fatalf("expected RT default priority %d, got %d", proc.PrioRTDefault, p.DynamicPrio)
	}
}

func TestSetPolicyToIdleSetsMaxPriority(t *testing.T) {
	tbl := proc.NewTable()
	p := tbl.Alloc()
	SetPolicy(p, proc.Idle)
	if p.DynamicPrio != proc.PrioIdle {
		t.Fatalf("expected idle priority %d, got %d", proc.PrioIdle, p.DynamicPrio)
	}
}

func TestAddRejectsIdle(t *testing.T) {
	tbl := proc.NewTable()
	s := New(newIdle(tbl), nil)
	other := tbl.Alloc()
	SetPolicy(other, proc.Idle)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Add to panic for an Idle-policy process")
		}
	}()
	s.Add(other)
}

// popNextLocked2ForTest is a thin test-only wrapper since popNextLocked
// requires the caller to already hold the lock.
func (s *Scheduler_t) popNextLocked2ForTest() *proc.Proc_t {
	s.Lock()
	defer s.Unlock()
	return s.popNextLocked()
}
