// Package devfs provides the concrete character devices registered into
// the VFS at boot: the serial console, a /dev/null-style sink, a
// scheduler/allocator statistics device, a real-time-clock readout, and
// a memory-backed test device. Each is grounded on a driver from
// original_source's drivers/ tree, reimplemented as a vfs.Ops_i rather
// than a C file_ops_t vtable.
package devfs

import (
	"fmt"
	"sync"
	"time"

	"riscvkern/src/defs"
	"riscvkern/src/vfs"
)

/// Console is the byte-level console collaborator, satisfied by
/// *console.Uart_t. devfs depends only on this interface, not on the
/// console package's concrete register layout.
type Console interface {
	Getc() byte
	Putc(b byte)
}

/// ConsoleDevice adapts a Console to vfs.Ops_i, the Go analogue of
/// testdev.c's file_ops_t binding to console I/O.
type ConsoleDevice struct {
	con Console
}

/// NewConsoleDevice wraps con as a registrable VFS device.
func NewConsoleDevice(con Console) *ConsoleDevice { return &ConsoleDevice{con: con} }

func (c *ConsoleDevice) Open(*vfs.Inode_t, *vfs.File_t) defs.Err_t  { return 0 }
func (c *ConsoleDevice) Close(*vfs.File_t) defs.Err_t               { return 0 }

/// Read fills buf one byte at a time from the console, stopping at '\n'
/// (inclusive) or when buf is full, mirroring syscall.READ's framing.
func (c *ConsoleDevice) Read(file *vfs.File_t, buf []byte) (int, defs.Err_t) {
	n := 0
	for n < len(buf) {
		b := c.con.Getc()
		buf[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	file.Offset += n
	return n, 0
}

/// Write emits every byte in buf to the console.
func (c *ConsoleDevice) Write(file *vfs.File_t, buf []byte) (int, defs.Err_t) {
	for _, b := range buf {
		c.con.Putc(b)
	}
	file.Offset += len(buf)
	return len(buf), 0
}

/// Seek is not meaningful on a live byte stream; the console device
/// rejects it, unlike testdev's buffer-backed seek.
func (c *ConsoleDevice) Seek(*vfs.File_t, int) (int, defs.Err_t) { return -1, -defs.EINVAL }

/// NullDevice discards writes and reports EOF on read, the Go analogue
/// of /dev/null.
type NullDevice struct{}

func (NullDevice) Open(*vfs.Inode_t, *vfs.File_t) defs.Err_t { return 0 }
func (NullDevice) Close(*vfs.File_t) defs.Err_t              { return 0 }
func (NullDevice) Read(*vfs.File_t, []byte) (int, defs.Err_t) { return 0, 0 }
func (NullDevice) Write(_ *vfs.File_t, buf []byte) (int, defs.Err_t) {
	return len(buf), 0
}
func (NullDevice) Seek(*vfs.File_t, int) (int, defs.Err_t) { return 0, 0 }

/// Snapshot is the set of counters the stat device renders, supplementing
/// spec.md's testable properties with the original's sched_print_stats
/// dump (see SPEC_FULL.md section 3).
type Snapshot struct {
	FreeFrames   int
	TotalFrames  int
	HeapUsed     int
	Ticks        int64
	IdleTicks    int64
	BusyTicks    int64
	NProcs       int
}

/// StatSource is polled once per Open to produce a fresh Snapshot; bound
/// to the live allocator/heap/scheduler/process-table at boot.
type StatSource func() Snapshot

/// StatDevice renders a Snapshot as text on every Open, reusing the
/// teacher's stats.Stats2String convention of a flat "#Field: value"
/// listing -- here produced unconditionally, since devfs has no build-tag
/// gated Stats const the way biscuit's stats package does.
type StatDevice struct {
	mu     sync.Mutex
	source StatSource
	text   []byte
	read   int
}

/// NewStatDevice returns a device that calls source on every Open and
/// serves the rendered snapshot to subsequent Reads.
func NewStatDevice(source StatSource) *StatDevice {
	return &StatDevice{source: source}
}

func (d *StatDevice) Open(*vfs.Inode_t, *vfs.File_t) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = []byte(d.render())
	return 0
}

func (d *StatDevice) render() string {
	s := d.source()
	return fmt.Sprintf(
		"#FreeFrames: %d\n#TotalFrames: %d\n#HeapUsed: %d\n#Ticks: %d\n#IdleTicks: %d\n#BusyTicks: %d\n#NProcs: %d\n",
		s.FreeFrames, s.TotalFrames, s.HeapUsed, s.Ticks, s.IdleTicks, s.BusyTicks, s.NProcs)
}

func (d *StatDevice) Close(*vfs.File_t) defs.Err_t { return 0 }

/// Read serves bytes out of the snapshot rendered at Open, honoring the
/// file's offset the way a real seekable device would.
func (d *StatDevice) Read(file *vfs.File_t, buf []byte) (int, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if file.Offset >= len(d.text) {
		return 0, 0
	}
	n := copy(buf, d.text[file.Offset:])
	file.Offset += n
	return n, 0
}

func (d *StatDevice) Write(*vfs.File_t, []byte) (int, defs.Err_t) { return -1, -defs.EINVAL }

func (d *StatDevice) Seek(file *vfs.File_t, offset int) (int, defs.Err_t) {
	if offset < 0 || offset > len(d.text) {
		return -1, -defs.EINVAL
	}
	file.Offset = offset
	return offset, 0
}

/// TestDeviceSize matches original_source's drivers/testdev/testdev.c
/// TESTDEV_SIZE.
const TestDeviceSize = 1024

/// TestDevice is a memory-backed buffer with grow-on-write semantics,
/// grounded on testdev.c, plus test2dev.c's partial-failure behavior
/// folded in as an optional FlakyAfter threshold (SPEC_FULL.md section 3).
type TestDevice struct {
	mu        sync.Mutex
	buf       [TestDeviceSize]byte
	len       int
	FlakyAfter int // 0 disables; >0 makes writes starting at or past this offset fail with EIO
}

/// NewTestDevice returns an empty, non-flaky test device.
func NewTestDevice() *TestDevice { return &TestDevice{} }

func (t *TestDevice) Open(*vfs.Inode_t, *vfs.File_t) defs.Err_t { return 0 }
func (t *TestDevice) Close(*vfs.File_t) defs.Err_t              { return 0 }

/// Read copies min(len(buf), available) bytes starting at file.Offset and
/// returns 0 (EOF) once the offset reaches the high-water mark, per
/// testdev_read.
func (t *TestDevice) Read(file *vfs.File_t, buf []byte) (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if file.Offset >= t.len {
		return 0, 0
	}
	n := copy(buf, t.buf[file.Offset:t.len])
	file.Offset += n
	return n, 0
}

/// Write copies buf into the backing array starting at file.Offset,
/// truncating to the device's remaining space the way testdev_write
/// truncates to "space"; if FlakyAfter is set and the write's starting
/// offset is at or past it, it fails with -EIO instead (test2dev.c's
/// injected-failure behavior).
func (t *TestDevice) Write(file *vfs.File_t, buf []byte) (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FlakyAfter > 0 && file.Offset >= t.FlakyAfter {
		return 0, -defs.EIO
	}
	space := TestDeviceSize - file.Offset
	if space <= 0 {
		return -1, -defs.EIO
	}
	n := len(buf)
	if n > space {
		n = space
	}
	copy(t.buf[file.Offset:file.Offset+n], buf[:n])
	file.Offset += n
	if file.Offset > t.len {
		t.len = file.Offset
	}
	return n, 0
}

/// Seek repositions the handle's offset within [0, TestDeviceSize].
func (t *TestDevice) Seek(file *vfs.File_t, offset int) (int, defs.Err_t) {
	if offset < 0 || offset > TestDeviceSize {
		return -1, -defs.EINVAL
	}
	file.Offset = offset
	return offset, 0
}

/// Clock is the wall-clock collaborator rtc.Clock_t satisfies; devfs
/// depends only on this interface, grounded on original_source's
/// rtc_get_time (a single register read returning the current time).
type Clock interface {
	Now() time.Time
}

/// RTCDevice renders the clock's current Unix time as decimal text on
/// every read, the Go-hosted analogue of rtc_get_time's single register
/// read -- the stub remains read-only and stateless, per drivers/rtc/rtc.c
/// having no write path.
type RTCDevice struct {
	clock Clock
}

/// NewRTCDevice wraps clock as a registrable VFS device.
func NewRTCDevice(clock Clock) *RTCDevice { return &RTCDevice{clock: clock} }

func (r *RTCDevice) Open(*vfs.Inode_t, *vfs.File_t) defs.Err_t { return 0 }
func (r *RTCDevice) Close(*vfs.File_t) defs.Err_t              { return 0 }

func (r *RTCDevice) Read(file *vfs.File_t, buf []byte) (int, defs.Err_t) {
	text := []byte(fmt.Sprintf("%d\n", r.clock.Now().Unix()))
	if file.Offset >= len(text) {
		return 0, 0
	}
	n := copy(buf, text[file.Offset:])
	file.Offset += n
	return n, 0
}

func (r *RTCDevice) Write(*vfs.File_t, []byte) (int, defs.Err_t) { return -1, -defs.EINVAL }

func (r *RTCDevice) Seek(file *vfs.File_t, offset int) (int, defs.Err_t) {
	if offset < 0 {
		return -1, -defs.EINVAL
	}
	file.Offset = offset
	return offset, 0
}
