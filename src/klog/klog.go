// Package klog formats the kernel's boot and diagnostic log lines. It
// follows the teacher's own logging convention -- bare Printf-style
// messages written directly to the console (see mem.Phys_init's
// "Reserved %v pages (%vMB)\n", biscuit's dmap.go "dmap via 1GB pages\n")
// -- wrapped in a tiny Logger so callers don't need a live console during
// early boot, and using golang.org/x/text/message to pluralize the
// counts those same boot messages report.
package klog

import (
	"fmt"
	"sync"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// cat registers the plural-selecting messages Pages/Procs format through;
// built once at package init since the message set never changes at
// runtime.
var cat = func() catalog.Catalog {
	b := catalog.NewBuilder()
	b.Set(language.English, "%d page(s) free",
		plural.Selectf(1, "%d",
			plural.One, "%d page free",
			plural.Other, "%d pages free",
		))
	b.Set(language.English, "%d process(es)",
		plural.Selectf(1, "%d",
			plural.One, "%d process",
			plural.Other, "%d processes",
		))
	return b
}()

/// Writer is the byte-sink a Logger writes through once the console is
/// up; *console.Uart_t satisfies this via its Puts method.
type Writer interface {
	Puts(s string)
}

/// Logger accumulates boot/diagnostic output. Before SetConsole is
/// called, Printf falls back to fmt.Printf directly -- the same early-boot
/// gap biscuit and gopheros have before their console driver attaches.
type Logger struct {
	mu      sync.Mutex
	out     Writer
	printer *message.Printer
}

/// New returns a Logger with no console attached yet.
func New() *Logger {
	return &Logger{printer: message.NewPrinter(language.English, message.Catalog(cat))}
}

/// SetConsole attaches w as the Logger's output; subsequent Printf calls
/// write through it instead of falling back to fmt.Printf.
func (l *Logger) SetConsole(w Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

/// Printf formats and emits one log line, terminated with '\n' if the
/// caller didn't already include one.
func (l *Logger) Printf(format string, args ...any) {
	l.mu.Lock()
	out := l.out
	l.mu.Unlock()

	s := fmt.Sprintf(format, args...)
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s += "\n"
	}
	if out != nil {
		out.Puts(s)
		return
	}
	fmt.Print(s)
}

/// Pages renders a free-page count the way mem.Phys_init's boot summary
/// does, but grammatically: "1 page free" / "512 pages free".
func (l *Logger) Pages(n int) string {
	return l.printer.Sprintf("%d page(s) free", n)
}

/// Procs renders a process count for boot/shutdown summaries, pluralized
/// the same way.
func (l *Logger) Procs(n int) string {
	return l.printer.Sprintf("%d process(es)", n)
}
