// Package vfs implements the device-only virtual filesystem (spec
// component 4.G): a fixed device registry, inode/handle bookkeeping, and
// delegation of read/write/seek to each device's op table.
package vfs

import (
	"strings"
	"sync"

	"riscvkern/src/defs"
)

/// NDEVICES is the size of the device registry.
const NDEVICES = 16

/// Ops_i is a device's operation vtable. Devices that hold state implement
// it via a pointer receiver, so their Ops_i value is a reference, not a
// copy of device state; stateless devices such as devfs.NullDevice use
// value receivers.
type Ops_i interface {
	Open(inode *Inode_t, file *File_t) defs.Err_t
	Close(file *File_t) defs.Err_t
	Read(file *File_t, buf []byte) (int, defs.Err_t)
	Write(file *File_t, buf []byte) (int, defs.Err_t)
	Seek(file *File_t, offset int) (int, defs.Err_t)
}

/// Type_t distinguishes inode kinds; this VFS only ever mints DEV
/// inodes (spec component 4.G has no in-kernel filesystem mount).
type Type_t int

const DEV Type_t = 1

type regEntry struct {
	name  string
	major int
	ops   Ops_i
	used  bool
}

/// Inode_t is a device inode: a registered device bound to an ops table,
/// reference-counted across open handles. Ino is monotonic and never
/// reused, per spec 3's data model; Rdev encodes the device's major
/// number via defs.Mkdev, the same major/minor split biscuit's stat
/// device exposes through Stat_t.Wrdev.
type Inode_t struct {
	Ino      uint64
	Type     Type_t
	Size     int
	Name     string
	Rdev     uint
	Ops      Ops_i
	Refcount int
}

/// File_t is an open handle: an inode plus a byte offset and open flags.
/// The VFS never advances Offset itself -- the device op updates it.
type File_t struct {
	Inode  *Inode_t
	Offset int
	Flags  int
}

/// Registry_t is the fixed 16-slot device table and the inode/handle
/// bookkeeping built on top of it.
type Registry_t struct {
	sync.Mutex
	devices [NDEVICES]regEntry
	nextIno uint64
}

/// NewRegistry returns an empty device registry.
func NewRegistry() *Registry_t {
	return &Registry_t{}
}

/// RegisterDevice copies name into the first free slot, bound to ops, and
/// records major as the device's well-known number (one of the
/// defs.D_* constants) for Mkdev encoding at Open time. Duplicate names
/// are allowed; Open always resolves to the first match. It panics if the
/// registry is full, since a fixed 16-device kernel running out of slots
/// indicates a build-time bug, not a runtime one.
func (r *Registry_t) RegisterDevice(name string, major int, ops Ops_i) {
	r.Lock()
	defer r.Unlock()
	for i := range r.devices {
		if !r.devices[i].used {
			r.devices[i] = regEntry{name: name, major: major, ops: ops, used: true}
			return
		}
	}
	panic("vfs: device registry full")
}

func (r *Registry_t) find(name string) *regEntry {
	for i := range r.devices {
		if r.devices[i].used && r.devices[i].name == name {
			return &r.devices[i]
		}
	}
	return nil
}

/// Open strips a leading '/' from path, looks the remainder up by exact
/// match, and on a hit allocates an inode and a handle and calls the
/// device's Open hook. It returns nil on a miss (NotFound, per spec 4.G/7)
/// or if the device's Open hook returns a nonzero error (the partially
/// constructed inode/handle are discarded).
func (r *Registry_t) Open(path string, flags int) *File_t {
	name := strings.TrimPrefix(path, "/")
	r.Lock()
	entry := r.find(name)
	if entry == nil {
		r.Unlock()
		return nil
	}
	r.nextIno++
	ino := r.nextIno
	r.Unlock()

	inode := &Inode_t{
		Ino:      ino,
		Type:     DEV,
		Name:     name,
		Rdev:     defs.Mkdev(entry.major, 0),
		Ops:      entry.ops,
		Refcount: 1,
	}
	file := &File_t{Inode: inode, Offset: 0, Flags: flags}
	if entry.ops.Open(inode, file) != 0 {
		return nil
	}
	return file
}

/// Close calls the device's Close hook (if it returns nonzero, the error
/// is ignored -- spec 4.G: "return ignored"), then drops the inode
/// refcount, freeing it at zero.
func (r *Registry_t) Close(file *File_t) {
	_ = file.Inode.Ops.Close(file)
	file.Inode.Refcount--
}

/// Read delegates to the device op; the returned count and the updated
/// Offset both come from the device, not from this layer.
func (r *Registry_t) Read(file *File_t, buf []byte) (int, defs.Err_t) {
	return file.Inode.Ops.Read(file, buf)
}

/// Write delegates to the device op.
func (r *Registry_t) Write(file *File_t, buf []byte) (int, defs.Err_t) {
	return file.Inode.Ops.Write(file, buf)
}

/// Seek delegates to the device op.
func (r *Registry_t) Seek(file *File_t, offset int) (int, defs.Err_t) {
	return file.Inode.Ops.Seek(file, offset)
}
