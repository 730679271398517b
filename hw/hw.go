// Package hw declares the machine services the boot-time disk path consumes:
// raw port I/O, a millisecond clock, interrupt waits, physical memory, a bump
// allocator and a line-oriented status printer.
package hw

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Ports is raw port-mapped I/O.
type Ports interface {
	In8(port uint16) uint8
	Out8(port uint16, v uint8)
	In16(port uint16) uint16
	Out16(port uint16, v uint16)
	In32(port uint16) uint32
	Out32(port uint16, v uint32)
}

// Clock provides millisecond sleeps and the current time.
type Clock interface {
	Sleep(ms int)
	Now() time.Time
}

// IRQ blocks until exactly one pending interrupt on line is observed, then
// clears it.
type IRQ interface {
	Wait(line int)
}

// Memory is physical memory addressed by offset.
type Memory interface {
	io.ReaderAt
	io.WriterAt
}

// Allocator hands out physical address ranges.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
}

// Printer is a best-effort status sink. Each call is one line.
type Printer interface {
	Printf(format string, args ...any)
}

var (
	ErrOutOfMemory = errors.New("hw: out of memory")
	ErrNoDevPort   = errors.New("hw: /dev/port is not available on this platform")
)

// WriterPrinter prints one line per call to W.
type WriterPrinter struct {
	W io.Writer
}

func (p WriterPrinter) Printf(format string, args ...any) {
	fmt.Fprintf(p.W, format+"\n", args...)
}

// Discard drops every line.
var Discard Printer = WriterPrinter{W: io.Discard}

// SystemClock is wall-clock time.
type SystemClock struct{}

func (SystemClock) Sleep(ms int) { time.Sleep(time.Duration(ms) * time.Millisecond) }

func (SystemClock) Now() time.Time { return time.Now() }
