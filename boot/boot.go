// Package boot loads a file from the boot floppy to a fixed physical address
// and hands control to it.
package boot

import (
	"errors"
	"fmt"
	"sync/atomic"

	"fdboot/dma"
	"fdboot/fat12"
	"fdboot/fdc"
	"fdboot/floppy"
	"fdboot/hw"
)

// ErrBusy is returned when a load is started while another is running.
var ErrBusy = errors.New("boot: load already in progress")

// Launcher transfers control to loaded code. On real hardware Jump does not
// return.
type Launcher interface {
	Jump(entry uint32) error
}

// Deps are the machine services a Loader is assembled from.
type Deps struct {
	Ports    hw.Ports
	Memory   hw.Memory
	Clock    hw.Clock
	IRQ      hw.IRQ
	Alloc    hw.Allocator
	Launcher Launcher
	Out      hw.Printer
	Config   fdc.Config
}

// Loader is the boot-time load path: controller, sector reader and volume.
type Loader struct {
	fdc    *fdc.Controller
	drive  *floppy.Drive
	vol    *fat12.Volume
	mem    hw.Memory
	launch Launcher
	out    hw.Printer
	busy   atomic.Bool

	loaded fat12.DirEntry
	n      int64
}

// Assemble wires the driver stack. The DMA buffer is allocated and its
// placement checked here, before any disk access.
func Assemble(d Deps) (*Loader, error) {
	buf, err := dma.NewBuffer(d.Alloc, fdc.SectorSize)
	if err != nil {
		return nil, err
	}
	c := fdc.New(d.Config, d.Ports, d.Clock, d.IRQ, d.Out)
	drive := floppy.New(c, dma.NewChannel(d.Ports), buf, d.Memory, d.Clock, d.Out)
	return &Loader{
		fdc:    c,
		drive:  drive,
		vol:    fat12.NewVolume(drive, fat12.Floppy144, d.Out),
		mem:    d.Memory,
		launch: d.Launcher,
		out:    d.Out,
	}, nil
}

func (l *Loader) Controller() *fdc.Controller { return l.fdc }

func (l *Loader) Drive() *floppy.Drive { return l.drive }

func (l *Loader) Volume() *fat12.Volume { return l.vol }

// Loaded returns the directory entry and byte count of the last file copied
// to memory.
func (l *Loader) Loaded() (fat12.DirEntry, int64) { return l.loaded, l.n }

func (l *Loader) status(what string, err error) error {
	if err != nil {
		l.out.Printf("%s... [FAIL] %v", what, err)
		return err
	}
	l.out.Printf("%s... [ OK ]", what)
	return nil
}

// Run resets the controller, finds name.ext in the root directory, copies it
// to dest and jumps there. A missing file stops the load path with an error
// wrapping fat12.ErrNotFound; the caller keeps running.
func (l *Loader) Run(name [8]byte, ext [3]byte, dest uint32) error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer l.busy.Store(false)

	if err := l.status("Resetting floppy controller", l.fdc.Reset()); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	bs, err := l.vol.ReadBootSector()
	if err == nil {
		err = l.vol.CheckBootSector(bs)
	}
	if err := l.status("Reading boot sector", err); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	table, err := l.vol.LoadTable()
	if err := l.status("Loading FAT", err); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	entry, err := l.vol.FindEntry(name, ext)
	if errors.Is(err, fat12.ErrNotFound) {
		l.out.Printf("%s.%s: file not found", name[:], ext[:])
		return fmt.Errorf("boot: %w", err)
	}
	if err := l.status("Reading root directory", err); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	l.out.Printf("  %s: %d bytes, first cluster %d", entry.FileName(), entry.Size, entry.Cluster())

	n, err := l.vol.LoadFile(table, entry, l.mem, int64(dest))
	if err := l.status(fmt.Sprintf("Loading %s to %#08x", entry.FileName(), dest), err); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	l.out.Printf("  %d bytes loaded", n)
	l.loaded, l.n = *entry, n

	l.out.Printf("Jumping to %#08x", dest)
	return l.launch.Jump(dest)
}
