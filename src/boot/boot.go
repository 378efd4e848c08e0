// Package boot sequences kernel bring-up: the linker-symbol contract
// (spec.md §6, "Boot contract") and the order in which the page
// allocator, heap, virtual memory, process table, scheduler, trap
// dispatcher, and VFS/devfs registry are constructed and wired together
// (spec.md §2's "Data flow at runtime" table). It plays the role the
// teacher's main.go / uacpi-style "Init" sequences play across the pack:
// one function that owns construction order so no subsystem observes
// another half-initialized.
package boot

import (
	"riscvkern/src/defs"
	"riscvkern/src/devfs"
	"riscvkern/src/elf"
	"riscvkern/src/heap"
	"riscvkern/src/irq"
	"riscvkern/src/klog"
	"riscvkern/src/mem"
	"riscvkern/src/plic"
	"riscvkern/src/proc"
	"riscvkern/src/rtc"
	"riscvkern/src/sched"
	"riscvkern/src/syscall"
	"riscvkern/src/trap"
	"riscvkern/src/vfs"
	"riscvkern/src/vm"
)

/// KERNBASE is the fixed physical load address of the kernel image,
/// per spec.md §6, "Boot contract".
const KERNBASE mem.Pa_t = vm.KERNBASE

/// PHYSTOP is the top of physical RAM modeled by this kernel (128 MiB),
/// per spec.md §6.
const PHYSTOP mem.Pa_t = vm.PHYSTOP

/// LinkerSymbols mirrors the `heap_start`, `heap_end`, `kernel_end`
/// symbols spec.md §6 says the linker supplies. The hosted build
/// (tests, host tooling) constructs these from a simulated arena instead
/// of reading them out of an ELF section.
type LinkerSymbols struct {
	HeapStart mem.Pa_t
	HeapEnd   mem.Pa_t
	KernelEnd mem.Pa_t
}

/// Platform is the CSR/MMIO seam boot.Init needs from the target: SATP
/// installation for VM (shared by vm.Platform and sched.Installer) and
/// interrupt masking for irq.Controller. The real riscv64 target
/// implements this over hardware CSRs; the hosted build uses a software
/// stand-in (see irq.NewHostController and the *_test.go fakes).
type Platform interface {
	vm.Platform
	irq.Controller
}

/// Kernel bundles every subsystem singleton boot.Init constructs, wired
/// per spec.md §2's dependency order (A through H).
type Kernel struct {
	Log     *klog.Logger
	IRQ     irq.Controller
	Alloc   *mem.Allocator_t
	Heap    *heap.Heap_t
	VM      *vm.VM_t
	KernRoot mem.Pa_t
	Procs   *proc.Table_t
	Sched   *sched.Scheduler_t
	VFS     *vfs.Registry_t
	Handles *syscall.Handles
	Syscalls *syscall.Dispatcher
	Trap    *trap.Dispatcher
	PLIC    *plic.Plic_t
	Idle    *proc.Proc_t
}

/// Init brings up the kernel in the order spec.md describes: physical
/// allocator and heap (A, B) first since everything else allocates
/// through them; then VM's kernel identity map (C); then the process
/// table, idle task, and scheduler (D, E); then the PLIC stub and the VFS
/// registry (G); then the syscall surface (H) and the trap dispatcher (F)
/// wired to the scheduler and syscall surface; then the devfs devices
/// registered into the VFS. The klog console is attached only when con
/// also has a Puts method (klog.Writer). con and plat are the hosted build's
/// software stand-ins for the UART and CSR seams; a riscv64 build
/// supplies the real MMIO-backed equivalents.
func Init(sym LinkerSymbols, arena []byte, heapRegion []byte, con devfs.Console, plat Platform) (*Kernel, defs.Err_t) {
	k := &Kernel{Log: klog.New(), IRQ: plat}

	k.Alloc = mem.NewAllocator(sym.KernelEnd, arena)
	k.Alloc.SetIRQController(plat)
	k.Heap = heap.NewHeap(heapRegion)

	k.VM = vm.New(k.Alloc)
	root, err := k.VM.InitKernelMap()
	if err != 0 {
		return nil, err
	}
	k.KernRoot = root
	vm.Install(plat, root)

	k.Procs = proc.NewTable()
	idle := &proc.Proc_t{Pid: 0, State: proc.Running, Policy: proc.Idle, PTRoot: mem.NilPa}
	idle.StaticPrio, idle.DynamicPrio = proc.PrioIdle, proc.PrioIdle
	k.Idle = idle
	k.Sched = sched.New(idle, plat)
	k.Sched.SetIRQController(plat)

	k.PLIC = plic.New(k.Log)

	k.VFS = vfs.NewRegistry()
	k.Handles = syscall.NewHandles()
	k.Syscalls = &syscall.Dispatcher{
		Console: con,
		VFS:     k.VFS,
		Sched:   k.Sched,
		Log:     k.Log,
		Handles: k.Handles,
		CurrentPid: func() proc.Pid_t {
			cur := k.Sched.Current()
			if cur == nil || cur == idle {
				return 0
			}
			return cur.Pid
		},
	}
	k.Trap = &trap.Dispatcher{Sched: k.Sched, Syscalls: k.Syscalls, Fatal: fatalLogger{k.Log}, Log: k.Log, Plic: k.PLIC}

	k.registerDevices(con)

	if w, ok := con.(klog.Writer); ok {
		k.Log.SetConsole(w)
	}
	k.Log.Printf("boot: %s, %d frames", k.Log.Pages(k.Alloc.Free()), k.Alloc.Total())
	return k, 0
}

func (k *Kernel) registerDevices(con devfs.Console) {
	k.VFS.RegisterDevice("console", defs.D_CONSOLE, devfs.NewConsoleDevice(con))
	k.VFS.RegisterDevice("null", defs.D_NULL, devfs.NullDevice{})
	k.VFS.RegisterDevice("testdev", defs.D_TESTDEV, devfs.NewTestDevice())
	k.VFS.RegisterDevice("rtc", defs.D_RTC, devfs.NewRTCDevice(rtc.New()))
	k.VFS.RegisterDevice("stat", defs.D_STAT, devfs.NewStatDevice(func() devfs.Snapshot {
		return devfs.Snapshot{
			FreeFrames:  k.Alloc.Free(),
			TotalFrames: k.Alloc.Total(),
			HeapUsed:    k.Heap.Used(),
			Ticks:       k.Sched.Ticks(),
			IdleTicks:   k.Sched.IdleTicks(),
			BusyTicks:   k.Sched.BusyTicks(),
			NProcs:      len(k.Procs.All()),
		}
	}))
}

/// Spawn allocates a process slot, validates candidate as an ELF image
/// (spec.md §1's "ELF validator" collaborator -- header checks only),
/// and sets up its initial context at the validated entry point. It adds
/// the process to the scheduler's ready set before returning.
func (k *Kernel) Spawn(name string, candidate []byte, stackTop uint64) (*proc.Proc_t, error) {
	v, verr := elf.Validate(candidate)
	if verr != nil {
		return nil, verr
	}
	p := k.Procs.Alloc()
	if p == nil {
		return nil, defs.ErrProcTableFull
	}
	proc.SetupContext(p, v.Entry, stackTop)
	irq.WithoutInterrupts(k.IRQ, func() {
		k.Sched.Add(p)
	})
	return p, nil
}

type fatalLogger struct{ log *klog.Logger }

func (f fatalLogger) Fatal(scause, sepc, stval uint64) {
	f.log.Printf("PANIC: scause=%#x sepc=%#x stval=%#x", scause, sepc, stval)
}
