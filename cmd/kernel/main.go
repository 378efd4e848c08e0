// Command kernel boots the hosted build: it wires boot.Init's subsystems
// together over simulated RAM and a simulated UART, then drives the
// trap dispatcher through a fixed number of timer ticks, mirroring
// spec.md §8 Scenario A ("boot-to-idle") end to end. There is no real
// riscv64 target in this repository (spec.md §1 places platform boot
// assembly out of scope); this is the hosted analogue biscuit itself
// ships alongside its qemu target (a `go run`-able entry point used by
// tests and local development).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"riscvkern/src/boot"
	"riscvkern/src/devfs"
	"riscvkern/src/trap"
)

// hostPlatform is a software stand-in for the SATP/SFENCE.VMA and
// SSTATUS.SIE CSR operations boot.Platform needs, sufficient to drive
// the scheduler and VM through their hosted tests.
type hostPlatform struct {
	satpMode uint8
	satpPPN  uint64
	irqOn    bool
}

func (p *hostPlatform) InstallSatp(mode uint8, rootPPN uint64) {
	p.satpMode, p.satpPPN = mode, rootPPN
}
func (p *hostPlatform) SfenceVMA() {}
func (p *hostPlatform) Disable() (prev uint64) {
	if p.irqOn {
		prev = 1
	}
	p.irqOn = false
	return prev
}
func (p *hostPlatform) Restore(prev uint64) { p.irqOn = prev != 0 }

// hostConsole is an in-memory UART: Putc appends to a buffer, Getc pops
// from a pre-seeded input queue (empty in this demo, since there is no
// interactive terminal driving `go run`).
type hostConsole struct {
	out *bytes.Buffer
	in  []byte
}

func (c *hostConsole) Getc() byte {
	if len(c.in) == 0 {
		return 0
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b
}
func (c *hostConsole) Putc(b byte)  { c.out.WriteByte(b) }
func (c *hostConsole) Puts(s string) {
	for i := 0; i < len(s); i++ {
		c.Putc(s[i])
	}
}

var _ devfs.Console = (*hostConsole)(nil)

func main() {
	ticks := flag.Int("ticks", 200, "number of timer ticks to simulate")
	flag.Parse()

	const arenaPages = 4096 // 16 MiB of simulated RAM above the kernel image
	arena := make([]byte, arenaPages*4096)
	heapRegion := make([]byte, 64*1024)
	con := &hostConsole{out: &bytes.Buffer{}}
	plat := &hostPlatform{irqOn: true}

	k, err := boot.Init(boot.LinkerSymbols{}, arena, heapRegion, con, plat)
	if err != 0 {
		fmt.Fprintf(os.Stderr, "boot failed: err=%d\n", err)
		os.Exit(1)
	}

	for i := 0; i < *ticks; i++ {
		k.Trap.Handle(&trap.Frame_t{Scause: 1<<63 | trap.IntTimer})
	}

	fmt.Print(con.out.String())
	fmt.Printf("ran %d ticks; idle=%d busy=%d free-frames=%d/%d\n",
		*ticks, k.Sched.IdleTicks(), k.Sched.BusyTicks(), k.Alloc.Free(), k.Alloc.Total())
}
