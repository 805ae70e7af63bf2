package cli

import (
	"fmt"
	"io"
	"sync"
)

// Printer serializes command output. List runs its tools concurrently, so
// every line goes through the one shared printer.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a printer over out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Line prints one formatted line.
func (p *Printer) Line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Section prints a blank-line separated block atomically.
func (p *Printer) Section(lines []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(p.out, line)
	}
	fmt.Fprintln(p.out)
}
