// Package shell is a minimal line-oriented REPL over the syscall
// surface, out of scope per spec.md §1 ("the interactive shell/REPL ...
// contain no novel engineering") and kept thin: it only tokenizes a line
// and maps known words to syscalls, doing none of the line-editing
// (backspace handling) spec.md §6 assigns to the shell rather than the
// console driver.
package shell

import (
	"strconv"
	"strings"

	"riscvkern/src/syscall"
)

/// Dispatcher is the subset of *syscall.Dispatcher the shell drives.
type Dispatcher interface {
	Dispatch(number int, req syscall.Request) int64
}

/// Shell_t evaluates one line at a time through Eval, which returns the
/// result as a string; Out is stored but Eval does not write to it.
type Shell_t struct {
	Out  func(s string)
	Sys  Dispatcher
}

/// New returns a shell bound to sys, writing output through out.
func New(sys Dispatcher, out func(s string)) *Shell_t {
	return &Shell_t{Sys: sys, Out: out}
}

/// Eval tokenizes one line of input and executes the matching builtin.
/// Recognized words: "write <text>", "open <path>", "close <n>",
/// "getpid", "yield", "exit <code>". There is no "read" builtin. Anything
/// else, "read" included, reports "unknown command", mirroring an unknown syscall number's -1 return rather than
/// panicking.
func (s *Shell_t) Eval(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "write":
		text := strings.Join(fields[1:], " ") + "\n"
		n := s.Sys.Dispatch(syscall.WRITE, syscall.Request{Buf: []byte(text)})
		return formatInt(n)
	case "open":
		if len(fields) < 2 {
			return "usage: open <path>"
		}
		n := s.Sys.Dispatch(syscall.OPEN, syscall.Request{Path: fields[1]})
		return formatInt(n)
	case "close":
		if len(fields) < 2 {
			return "usage: close <handle>"
		}
		h, err := strconv.Atoi(fields[1])
		if err != nil {
			return "bad handle"
		}
		n := s.Sys.Dispatch(syscall.CLOSE, syscall.Request{Handle: h})
		return formatInt(n)
	case "getpid":
		n := s.Sys.Dispatch(syscall.GETPID, syscall.Request{})
		return formatInt(n)
	case "yield":
		n := s.Sys.Dispatch(syscall.YIELD, syscall.Request{})
		return formatInt(n)
	case "exit":
		code := 0
		if len(fields) >= 2 {
			code, _ = strconv.Atoi(fields[1])
		}
		n := s.Sys.Dispatch(syscall.EXIT, syscall.Request{Code: code})
		return formatInt(n)
	default:
		return "unknown command"
	}
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
