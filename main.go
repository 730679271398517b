// fdboot
// Boot-time floppy loader: resets the floppy controller, reads a FAT12
// root directory through the ISA DMA channel, and copies a named file to a
// physical address before jumping to it. Runs against an emulated PC, or
// probes real hardware through /dev/port.
//
// Build:
//
//	go build -o fdboot .
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"fdboot/boot"
	"fdboot/chs"
	"fdboot/diag"
	"fdboot/emu"
	"fdboot/fat12"
	"fdboot/fdc"
	"fdboot/hw"
	"fdboot/retrodfrg"
)

const (
	ramSize     = 4 << 20
	bumpStart   = 0x8000
	bumpLimit   = 0x80000
	defaultDest = 0x100000
	tickEvery   = 10 * time.Millisecond
)

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func mediaTypeBySize(size int64) string {
	switch size {
	case 360 * 1024:
		return "5.25\" DD 360K"
	case 720 * 1024:
		return "3.5\" DD 720K"
	case 1200 * 1024:
		return "5.25\" HD 1.2M"
	case 1440 * 1024:
		return "3.5\" HD 1.44M"
	case 2880 * 1024:
		return "3.5\" ED 2.88M"
	}
	return ""
}

// loadImage reads a floppy image or device. Anything larger than a 1.44 MB
// disk is refused; shorter images are padded by the drive.
func loadImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := getDeviceSize(f)
	if err != nil {
		return nil, err
	}
	if size > emu.DiskSize {
		return nil, fmt.Errorf("%s: %d bytes is larger than a %d-byte 1.44M disk", path, size, emu.DiskSize)
	}
	if mediaTypeBySize(size) != "3.5\" HD 1.44M" {
		fmt.Fprintf(os.Stderr, "warning: %s is %d bytes, not a 1.44M image\n", path, size)
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && size > 0 {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf, nil
}

// bootPhases maps status line prefixes to console phases.
var bootPhases = []struct{ prefix, phase string }{
	{"Resetting", "Reset"},
	{"Reading boot sector", "Boot"},
	{"Loading FAT", "FAT"},
	{"Reading root directory", "Directory"},
	{"Loading ", "Load"},
}

// consolePrinter feeds the boot console and ticks off phases as their
// status lines report OK.
type consolePrinter struct {
	ui *retrodfrg.UI
}

func (p consolePrinter) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if strings.HasSuffix(line, "[ OK ]") {
		for _, ph := range bootPhases {
			if strings.HasPrefix(line, ph.prefix) {
				p.ui.SetPhaseDone(ph.phase)
				break
			}
		}
	}
	p.ui.Printf("%s", line)
}

type bootOptions struct {
	image        string
	name         string
	dest         uint32
	out          string
	ui           bool
	injectCRC    int
	writeProtect bool
	stall        bool
}

func runBoot(o bootOptions) error {
	name, ext, err := fat12.SplitName(strings.ToUpper(o.name))
	if err != nil {
		return err
	}
	disk, err := loadImage(o.image)
	if err != nil {
		return err
	}
	if uint64(o.dest)+emu.DiskSize > ramSize {
		return fmt.Errorf("--dest %#x leaves no room for a full disk below %#x", o.dest, ramSize)
	}

	m := emu.NewMachine(disk, ramSize)
	m.SetFaults(emu.Faults{CRCErrors: o.injectCRC, NotWritable: o.writeProtect, Stall: o.stall})
	cpu := &emu.CPU{}

	var (
		out     hw.Printer = hw.WriterPrinter{W: os.Stdout}
		ui      *retrodfrg.UI
		sectors *retrodfrg.SectorMap
	)
	if o.ui {
		ui, err = retrodfrg.NewUI()
		if err != nil {
			return err
		}
		defer ui.Close()
		out = consolePrinter{ui: ui}
	}

	cfg := fdc.DefaultConfig()
	ld, err := boot.Assemble(boot.Deps{
		Ports:    m,
		Memory:   m,
		Clock:    m.Clock(),
		IRQ:      m.IRQ(),
		Alloc:    hw.NewBump(bumpStart, bumpLimit),
		Launcher: cpu,
		Out:      out,
		Config:   cfg,
	})
	if err != nil {
		return err
	}
	if ui != nil {
		l, buf := ld.Volume().Layout(), ld.Drive().Buffer()
		sectors = retrodfrg.NewSectorMap(chs.Capacity, [][2]int64{
			{0, 0},
			{int64(l.FATStart), int64(l.RootStart - 1)},
			{int64(l.RootStart), int64(l.DataStart - 1)},
		})
		ui.SetTitle(" FDBOOT ")
		ui.SetSummaryLines([]string{
			fmt.Sprintf(" Image: %s", o.image),
			fmt.Sprintf(" File:  %s.%s -> %#08x", strings.TrimSpace(string(name[:])), strings.TrimSpace(string(ext[:])), o.dest),
			fmt.Sprintf(" DMA:   %#06x, %d bytes", buf.Addr, buf.Size),
		})
		ui.SetLegend([]string{fmt.Sprintf(" %c read  %c system  %c free  %c failed   (q to quit)",
			retrodfrg.GlyphRead, retrodfrg.GlyphSystem, retrodfrg.GlyphFree, retrodfrg.GlyphFailed)})
		ui.SetPhases([]string{"Reset", "Boot", "FAT", "Directory", "Load"})
		ui.SetSectorMap(sectors)
		ui.LayoutAndDraw()
		ld.Drive().Observer = func(lba uint32, err error) {
			sectors.MarkSector(int64(lba), err == nil)
			ui.LayoutAndDraw()
		}
	}

	// system timer: drives the motor power-off timeout
	motor := ld.Controller().Motor()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(tickEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				motor.Tick()
			}
		}
	}()

	start := m.Clock().Elapsed()
	runErr := ld.Run(name, ext, o.dest)
	close(stop)
	wg.Wait()

	// let the pending power-off lapse
	m.Clock().Advance(cfg.MotorOffDelay)
	motor.Tick()
	st, _ := motor.State()
	s := m.Stats()
	out.Printf("%d sectors read, %d read commands, %d spin-ups, motor %s, %v machine time",
		s.SectorsRead, s.ReadCommands, s.SpinUps, st, (m.Clock().Elapsed() - start).Truncate(time.Millisecond))

	if ui != nil {
		_ = retrodfrg.WaitWithStop(ui, 3*time.Second)
	}
	if runErr != nil {
		return runErr
	}

	entry, ok := cpu.Entry()
	if !ok {
		return errors.New("loader returned without jumping")
	}
	if o.out != "" {
		_, n := ld.Loaded()
		buf := make([]byte, n)
		if _, err := m.ReadAt(buf, int64(entry)); err != nil {
			return err
		}
		if err := os.WriteFile(o.out, buf, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %d bytes from %#08x to %s\n", n, entry, o.out)
	}
	return nil
}

// openVolume serves an image file straight from memory, without the
// controller in the path.
func openVolume(path string) (*fat12.Volume, *fat12.BootSector, error) {
	disk, err := loadImage(path)
	if err != nil {
		return nil, nil, err
	}
	vol := fat12.NewVolume(fat12.MemDisk(disk), fat12.Floppy144, hw.WriterPrinter{W: os.Stderr})
	bs, err := vol.ReadBootSector()
	if err != nil {
		return nil, nil, err
	}
	return vol, bs, nil
}

func main() {
	root := &cobra.Command{
		Use:   "fdboot",
		Short: "Boot-time floppy loader",
		Long:  "Load a file from a FAT12 boot floppy through the floppy controller and DMA, on an emulated PC",
	}

	// boot
	var bo bootOptions
	bootCmd := &cobra.Command{
		Use:   "boot",
		Short: "Load a file from an image to a physical address and jump to it",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBoot(bo)
		},
	}
	bootCmd.Flags().StringVar(&bo.image, "image", "", "1.44M floppy image or device")
	bootCmd.Flags().StringVar(&bo.name, "name", "KERNEL.BIN", "8.3 file name in the root directory")
	bootCmd.Flags().Uint32Var(&bo.dest, "dest", defaultDest, "physical load address")
	bootCmd.Flags().StringVar(&bo.out, "out", "", "write the loaded bytes to this file")
	bootCmd.Flags().BoolVar(&bo.ui, "ui", false, "full-screen console with a sector map")
	bootCmd.Flags().IntVar(&bo.injectCRC, "inject-crc", 0, "fail this many transfers with a data CRC error (-1: all)")
	bootCmd.Flags().BoolVar(&bo.writeProtect, "write-protect", false, "report write-protected media on every transfer")
	bootCmd.Flags().BoolVar(&bo.stall, "stall", false, "controller never becomes ready")
	_ = bootCmd.MarkFlagRequired("image")
	root.AddCommand(bootCmd)

	// ls
	var lsImage string
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List the root directory of an image",
		RunE: func(_ *cobra.Command, _ []string) error {
			vol, _, err := openVolume(lsImage)
			if err != nil {
				return err
			}
			entries, err := vol.Entries()
			if err != nil {
				return err
			}
			diag.Entries(hw.WriterPrinter{W: os.Stdout}, entries)
			return nil
		},
	}
	lsCmd.Flags().StringVar(&lsImage, "image", "", "floppy image")
	_ = lsCmd.MarkFlagRequired("image")
	root.AddCommand(lsCmd)

	// info
	var infoImage string
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Dump the boot sector and layout of an image",
		RunE: func(_ *cobra.Command, _ []string) error {
			vol, bs, err := openVolume(infoImage)
			if err != nil {
				return err
			}
			p := hw.WriterPrinter{W: os.Stdout}
			diag.BootSector(p, bs)
			if err := vol.CheckBootSector(bs); err != nil {
				p.Printf(" not loadable: %v", err)
			}
			return nil
		},
	}
	infoCmd.Flags().StringVar(&infoImage, "image", "", "floppy image")
	_ = infoCmd.MarkFlagRequired("image")
	root.AddCommand(infoCmd)

	// mkimg
	var (
		mkOut, mkLabel, mkOEM string
		mkAdd                 []string
		mkFragment            bool
	)
	mkimgCmd := &cobra.Command{
		Use:   "mkimg",
		Short: "Create a 1.44M FAT12 image holding the given files",
		RunE: func(_ *cobra.Command, _ []string) error {
			im, err := fat12.NewImage(fat12.Options{Label: mkLabel, OEM: mkOEM, Fragment: mkFragment})
			if err != nil {
				return err
			}
			for _, spec := range mkAdd {
				// FILE or FILE=NAME.EXT
				src, name, ok := strings.Cut(spec, "=")
				if !ok {
					name = src[strings.LastIndexAny(src, `/\`)+1:]
				}
				data, err := os.ReadFile(src)
				if err != nil {
					return err
				}
				c, err := im.AddFile(strings.ToUpper(name), data)
				if err != nil {
					return fmt.Errorf("%s: %w", src, err)
				}
				fmt.Printf("  %-12s %8d bytes  first cluster %d\n", strings.ToUpper(name), len(data), c)
			}
			if err := os.WriteFile(mkOut, im.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%s)\n", mkOut, mediaTypeBySize(int64(len(im.Bytes()))))
			return nil
		},
	}
	mkimgCmd.Flags().StringVar(&mkOut, "out", "", "output image file")
	mkimgCmd.Flags().StringSliceVar(&mkAdd, "add", nil, "file to add, as PATH or PATH=NAME.EXT (repeatable)")
	mkimgCmd.Flags().StringVar(&mkLabel, "label", "", "volume label (<=11 ASCII)")
	mkimgCmd.Flags().StringVar(&mkOEM, "oem", "FDBOOT", "OEM string (<=8 ASCII)")
	mkimgCmd.Flags().BoolVar(&mkFragment, "fragment", false, "leave a free cluster between allocations")
	_ = mkimgCmd.MarkFlagRequired("out")
	root.AddCommand(mkimgCmd)

	// probe
	var devport bool
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Report the floppy drive types recorded in CMOS",
		RunE: func(_ *cobra.Command, _ []string) error {
			var ports hw.Ports = emu.NewMachine(nil, 0)
			check := func() error { return nil }
			if devport {
				dp, err := hw.OpenDevPort()
				if err != nil {
					return err
				}
				defer dp.Close()
				ports, check = dp, dp.Err
			}
			d0, d1 := diag.DriveTypes(ports)
			if err := check(); err != nil {
				return err
			}
			fmt.Printf("Drive 0: %s\nDrive 1: %s\n", d0, d1)
			return nil
		},
	}
	probeCmd.Flags().BoolVar(&devport, "devport", false, "read real CMOS through /dev/port (root)")
	root.AddCommand(probeCmd)

	must(root.Execute())
}
