package syscall

import (
	"testing"

	"riscvkern/src/defs"
	"riscvkern/src/proc"
	"riscvkern/src/vfs"
)

type fakeConsole struct {
	in  []byte
	pos int
	out []byte
}

func (c *fakeConsole) Getc() byte {
	if c.pos >= len(c.in) {
		return 0
	}
	b := c.in[c.pos]
	c.pos++
	return b
}

func (c *fakeConsole) Putc(b byte) { c.out = append(c.out, b) }

type fakeSched struct{ yielded bool }

func (s *fakeSched) Yield() *proc.Proc_t { s.yielded = true; return nil }

type fakeLog struct{ lines []string }

func (l *fakeLog) Printf(format string, args ...any) { l.lines = append(l.lines, format) }

type nullDevice struct{}

func (nullDevice) Open(*vfs.Inode_t, *vfs.File_t) defs.Err_t    { return 0 }
func (nullDevice) Close(*vfs.File_t) defs.Err_t                 { return 0 }
func (nullDevice) Read(*vfs.File_t, []byte) (int, defs.Err_t)   { return 0, 0 }
func (nullDevice) Write(*vfs.File_t, []byte) (int, defs.Err_t)  { return 0, 0 }
func (nullDevice) Seek(*vfs.File_t, int) (int, defs.Err_t)      { return 0, 0 }

func newDispatcher() (*Dispatcher, *fakeConsole, *fakeSched) {
	reg := vfs.NewRegistry()
	reg.RegisterDevice("null", defs.D_NULL, nullDevice{})
	con := &fakeConsole{}
	s := &fakeSched{}
	return &Dispatcher{
		Console: con,
		VFS:     reg,
		Sched:   s,
		Log:     &fakeLog{},
		Handles: NewHandles(),
		CurrentPid: func() proc.Pid_t { return 7 },
	}, con, s
}

func TestReadStopsOnNewline(t *testing.T) {
	d, con, _ := newDispatcher()
	con.in = []byte("hi\nmore")
	buf := make([]byte, 16)
	n := d.Dispatch(READ, Request{Buf: buf, N: 16})
	if n != 3 {
		t.Fatalf("read returned %d, want 3", n)
	}
	if string(buf[:3]) != "hi\n" {
		t.Fatalf("buf = %q", buf[:3])
	}
}

func TestWriteEmitsAllBytes(t *testing.T) {
	d, con, _ := newDispatcher()
	n := d.Dispatch(WRITE, Request{Buf: []byte("hello")})
	if n != 5 {
		t.Fatalf("write returned %d, want 5", n)
	}
	if string(con.out) != "hello" {
		t.Fatalf("console got %q", con.out)
	}
}

func TestForkExecReturnMinusOne(t *testing.T) {
	d, _, _ := newDispatcher()
	if got := d.Dispatch(FORK, Request{}); got != -1 {
		t.Fatalf("FORK = %d, want -1", got)
	}
	if got := d.Dispatch(EXEC, Request{}); got != -1 {
		t.Fatalf("EXEC = %d, want -1", got)
	}
}

func TestExitReturnsZero(t *testing.T) {
	d, _, _ := newDispatcher()
	if got := d.Dispatch(EXIT, Request{Code: 42}); got != 0 {
		t.Fatalf("EXIT = %d, want 0", got)
	}
}

func TestOpenCloseHappyPath(t *testing.T) {
	d, _, _ := newDispatcher()
	h := d.Dispatch(OPEN, Request{Path: "/null", Flags: 0})
	if h < 0 {
		t.Fatalf("OPEN failed: %d", h)
	}
	if got := d.Dispatch(CLOSE, Request{Handle: int(h)}); got != 0 {
		t.Fatalf("CLOSE = %d, want 0", got)
	}
}

func TestOpenUnknownDeviceReturnsMinusOne(t *testing.T) {
	d, _, _ := newDispatcher()
	if got := d.Dispatch(OPEN, Request{Path: "/nope"}); got != -1 {
		t.Fatalf("OPEN of unknown device = %d, want -1", got)
	}
}

func TestCloseBadHandleReturnsMinusOne(t *testing.T) {
	d, _, _ := newDispatcher()
	if got := d.Dispatch(CLOSE, Request{Handle: 999}); got != -1 {
		t.Fatalf("CLOSE of bad handle = %d, want -1", got)
	}
}

func TestGetpid(t *testing.T) {
	d, _, _ := newDispatcher()
	if got := d.Dispatch(GETPID, Request{}); got != 7 {
		t.Fatalf("GETPID = %d, want 7", got)
	}
}

func TestYieldInvokesScheduler(t *testing.T) {
	d, _, s := newDispatcher()
	if got := d.Dispatch(YIELD, Request{}); got != 0 {
		t.Fatalf("YIELD = %d, want 0", got)
	}
	if !s.yielded {
		t.Fatal("expected Dispatch(YIELD) to call Sched.Yield")
	}
}

func TestUnknownSyscallReturnsMinusOne(t *testing.T) {
	d, _, _ := newDispatcher()
	if got := d.Dispatch(999, Request{}); got != -1 {
		t.Fatalf("unknown syscall = %d, want -1", got)
	}
}
