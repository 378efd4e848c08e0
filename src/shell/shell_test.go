package shell

import (
	"testing"

	"riscvkern/src/syscall"
)

type fakeDispatcher struct {
	lastNumber int
	lastReq    syscall.Request
	ret        int64
}

func (f *fakeDispatcher) Dispatch(number int, req syscall.Request) int64 {
	f.lastNumber = number
	f.lastReq = req
	return f.ret
}

func TestEvalGetpid(t *testing.T) {
	d := &fakeDispatcher{ret: 7}
	s := New(d, func(string) {})
	if got := s.Eval("getpid"); got != "7" {
		t.Fatalf("got %q", got)
	}
	if d.lastNumber != syscall.GETPID {
		t.Fatalf("dispatched %d, want GETPID", d.lastNumber)
	}
}

func TestEvalWritePassesTextWithNewline(t *testing.T) {
	d := &fakeDispatcher{ret: 6}
	s := New(d, func(string) {})
	s.Eval("write hello")
	if string(d.lastReq.Buf) != "hello\n" {
		t.Fatalf("got %q", d.lastReq.Buf)
	}
}

func TestEvalUnknownCommand(t *testing.T) {
	s := New(&fakeDispatcher{}, func(string) {})
	if got := s.Eval("frobnicate"); got != "unknown command" {
		t.Fatalf("got %q", got)
	}
}

func TestEvalEmptyLine(t *testing.T) {
	s := New(&fakeDispatcher{}, func(string) {})
	if got := s.Eval("   "); got != "" {
		t.Fatalf("got %q", got)
	}
}
