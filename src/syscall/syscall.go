// Package syscall implements the syscall surface (spec component 4.H):
// decoding the number+args ABI and dispatching to the kernel's other
// subsystems.
package syscall

import (
	"riscvkern/src/proc"
	"riscvkern/src/util"
	"riscvkern/src/vfs"
)

/// Syscall numbers, per the table in spec 4.H.
const (
	READ = iota
	WRITE
	FORK
	EXEC
	EXIT
	OPEN
	CLOSE
	GETPID
	YIELD
)

/// Console is the minimal byte-level collaborator the READ/WRITE
/// syscalls drive; the console device itself is an external collaborator
/// (spec's "out of scope" list) specified only through this interface.
type Console interface {
	Getc() byte
	Putc(b byte)
}

/// Scheduler is the subset of *sched.Scheduler_t the YIELD syscall needs.
type Scheduler interface {
	Yield() *proc.Proc_t
}

/// Logger receives EXIT's code report. Any structured logger satisfies
/// this; production wiring is src/klog.
type Logger interface {
	Printf(format string, args ...any)
}

/// Handles maps small integer file handles (as returned to userspace) to
/// open VFS files, since the syscall ABI passes handles as integers, not
/// pointers.
type Handles struct {
	next  int
	files map[int]*vfs.File_t
}

/// NewHandles returns an empty handle table.
func NewHandles() *Handles {
	return &Handles{files: make(map[int]*vfs.File_t)}
}

func (h *Handles) alloc(f *vfs.File_t) int {
	id := h.next
	h.next++
	h.files[id] = f
	return id
}

func (h *Handles) get(id int) *vfs.File_t {
	return h.files[id]
}

func (h *Handles) release(id int) {
	delete(h.files, id)
}

/// Request carries a syscall's decoded arguments. In a real deployment
/// these come from copying a1..a3 and the buffers they address out of the
/// trapping process's address space; that copy-in/copy-out step is the
/// syscall ABI's job (spec 6, "Syscall ABI"), not this package's -- the
/// dispatcher here receives the already-resolved Go values.
type Request struct {
	Buf    []byte // READ: filled in place, up to N bytes. WRITE: bytes to emit.
	N      int    // READ: maximum bytes to read.
	Path   string // OPEN
	Flags  int    // OPEN
	Handle int    // CLOSE
	Code   int    // EXIT
}

/// Dispatcher wires the syscall table to the subsystems it drives.
type Dispatcher struct {
	Console    Console
	VFS        *vfs.Registry_t
	Sched      Scheduler
	Log        Logger
	Handles    *Handles
	CurrentPid func() proc.Pid_t
}

/// Dispatch decodes the syscall number and routes to the matching
/// handler. An unknown number returns -1, per spec 4.H.
func (d *Dispatcher) Dispatch(number int, req Request) int64 {
	switch number {
	case READ:
		return int64(d.sysRead(req.Buf, req.N))
	case WRITE:
		return int64(d.sysWrite(req.Buf))
	case FORK:
		return -1
	case EXEC:
		return -1
	case EXIT:
		return d.sysExit(req.Code)
	case OPEN:
		return int64(d.sysOpen(req.Path, req.Flags))
	case CLOSE:
		return int64(d.sysClose(req.Handle))
	case GETPID:
		return d.sysGetpid()
	case YIELD:
		return d.sysYield()
	default:
		return -1
	}
}

// sysRead loops Getc into buf for up to n bytes, stopping early
// (inclusively) on '\n', and returns the count transferred.
func (d *Dispatcher) sysRead(buf []byte, n int) int {
	n = util.Min(n, len(buf))
	count := 0
	for count < n {
		c := d.Console.Getc()
		buf[count] = c
		count++
		if c == '\n' {
			break
		}
	}
	return count
}

func (d *Dispatcher) sysWrite(buf []byte) int {
	for _, b := range buf {
		d.Console.Putc(b)
	}
	return len(buf)
}

func (d *Dispatcher) sysExit(code int) int64 {
	if d.Log != nil {
		d.Log.Printf("process exited with code %d", code)
	}
	return 0
}

func (d *Dispatcher) sysOpen(path string, flags int) int {
	f := d.VFS.Open(path, flags)
	if f == nil {
		return -1
	}
	return d.Handles.alloc(f)
}

func (d *Dispatcher) sysClose(handle int) int {
	f := d.Handles.get(handle)
	if f == nil {
		return -1
	}
	d.VFS.Close(f)
	d.Handles.release(handle)
	return 0
}

func (d *Dispatcher) sysGetpid() int64 {
	if d.CurrentPid == nil {
		return 0
	}
	return int64(d.CurrentPid())
}

func (d *Dispatcher) sysYield() int64 {
	d.Sched.Yield()
	return 0
}
