package boot

import (
	"testing"

	"riscvkern/src/irq"
	"riscvkern/src/mem"
	"riscvkern/src/proc"
	"riscvkern/src/sched"
	"riscvkern/src/syscall"
	"riscvkern/src/trap"
)

type fakeConsole struct {
	in  []byte
	out []byte
}

func (c *fakeConsole) Getc() byte {
	if len(c.in) == 0 {
		return 0
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b
}
func (c *fakeConsole) Putc(b byte)   { c.out = append(c.out, b) }
func (c *fakeConsole) Puts(s string) { c.out = append(c.out, s...) }

type fakePlatform struct {
	enabled bool
}

func (*fakePlatform) InstallSatp(uint8, uint64) {}
func (*fakePlatform) SfenceVMA()                {}
func (p *fakePlatform) Disable() (prev uint64) {
	if p.enabled {
		prev = 1
	}
	p.enabled = false
	return prev
}
func (p *fakePlatform) Restore(prev uint64) { p.enabled = prev != 0 }

func newTestKernel(t *testing.T) (*Kernel, *fakeConsole) {
	t.Helper()
	const arenaPages = 128 // the kernel identity map alone takes 101 page-table frames
	arena := make([]byte, arenaPages*mem.PGSIZE)
	heapRegion := make([]byte, 4096)
	con := &fakeConsole{}
	plat := &fakePlatform{enabled: true}
	k, err := Init(LinkerSymbols{}, arena, heapRegion, con, plat)
	if err != 0 {
		t.Fatalf("Init err=%d", err)
	}
	return k, con
}

// Scenario A: boot-to-idle. With no processes added, Next() is the idle
// task and Tick() increments the per-CPU idle counter.
func TestScenarioABootToIdle(t *testing.T) {
	k, _ := newTestKernel(t)
	if k.Sched.Next() != k.Idle {
		t.Fatal("expected idle task to be next with no processes queued")
	}
	k.Sched.Tick()
	if k.Sched.IdleTicks() != 1 {
		t.Fatalf("IdleTicks = %d, want 1", k.Sched.IdleTicks())
	}
}

// Scenario E: VFS echo through the registered testdev device (write,
// seek, read), and OPEN/CLOSE driven through the syscall surface boot
// wires the VFS registry to.
func TestScenarioEVFSEchoAndSyscallOpenClose(t *testing.T) {
	k, _ := newTestKernel(t)

	file := k.VFS.Open("/testdev", 0)
	if file == nil {
		t.Fatal("open of registered testdev failed")
	}
	if _, err := k.VFS.Write(file, []byte("hello")); err != 0 {
		t.Fatalf("write err=%d", err)
	}
	if _, err := k.VFS.Seek(file, 0); err != 0 {
		t.Fatalf("seek err=%d", err)
	}
	buf := make([]byte, 5)
	n, err := k.VFS.Read(file, buf)
	if err != 0 || string(buf[:n]) != "hello" {
		t.Fatalf("read = %q, err=%d, want hello", buf[:n], err)
	}
	k.VFS.Close(file)

	h := k.Syscalls.Dispatch(syscall.OPEN, syscall.Request{Path: "/testdev"})
	if h < 0 {
		t.Fatalf("OPEN syscall failed: %d", h)
	}
	if rc := k.Syscalls.Dispatch(syscall.CLOSE, syscall.Request{Handle: int(h)}); rc != 0 {
		t.Fatalf("CLOSE syscall = %d, want 0", rc)
	}
}

func TestBootRejectsUnrunnableProcessTableOverflow(t *testing.T) {
	k, _ := newTestKernel(t)
	var last *proc.Proc_t
	for i := 0; i < proc.NSLOTS; i++ {
		p := k.Procs.Alloc()
		if p == nil {
			t.Fatalf("table exhausted early at i=%d", i)
		}
		last = p
	}
	if p := k.Procs.Alloc(); p != nil {
		t.Fatal("expected nil once the table is full")
	}
	_ = last
}

func TestTrapDispatchTimerDrivesScheduler(t *testing.T) {
	k, _ := newTestKernel(t)
	rt := proc.Proc_t{Policy: proc.RR, State: proc.Runnable}
	irq.WithoutInterrupts(k.IRQ, func() { k.Sched.Add(&rt) })
	for i := 0; i < sched.RTSlice+1; i++ {
		k.Trap.Handle(&trap.Frame_t{Scause: 1<<63 | trap.IntTimer})
	}
	if k.Sched.Current() != &rt {
		t.Fatalf("expected RT process running after slice expiry, got %+v", k.Sched.Current())
	}
}
