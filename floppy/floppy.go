// Package floppy reads logical sectors from drive 0: geometry translation,
// seek, DMA setup, the READ DATA command and the retry policy.
package floppy

import (
	"errors"
	"fmt"

	"fdboot/chs"
	"fdboot/dma"
	"fdboot/fdc"
	"fdboot/hw"
)

var (
	ErrSeek             = errors.New("seek failed")
	ErrRetryableFault   = errors.New("retryable fault")
	ErrNotRetryable     = errors.New("not retryable")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// SectorError describes a failed sector read. It matches both its kind
// (one of the Err* values) and the underlying cause with errors.Is.
type SectorError struct {
	LBA      uint32
	CHS      chs.CHS
	Attempts int
	Faults   fdc.Fault
	Err      error
	Cause    error
}

func (e *SectorError) Error() string {
	msg := fmt.Sprintf("floppy: read lba %d (%s): %v", e.LBA, e.CHS, e.Err)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Faults != 0 {
		msg += ": " + e.Faults.String()
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SectorError) Unwrap() []error {
	errs := []error{e.Err}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Drive owns the DMA buffer and reads through it one sector at a time.
type Drive struct {
	fdc   *fdc.Controller
	dma   *dma.Channel
	buf   dma.Buffer
	mem   hw.Memory
	clock hw.Clock
	out   hw.Printer

	retries int
	settle  int

	// Observer, if set, is told about every read as it finishes.
	Observer func(lba uint32, err error)
}

func New(c *fdc.Controller, ch *dma.Channel, buf dma.Buffer, mem hw.Memory, clock hw.Clock, out hw.Printer) *Drive {
	cfg := c.Config()
	return &Drive{
		fdc:     c,
		dma:     ch,
		buf:     buf,
		mem:     mem,
		clock:   clock,
		out:     out,
		retries: cfg.TransferRetries,
		settle:  cfg.SettleMs,
	}
}

// Buffer is the DMA transfer area.
func (d *Drive) Buffer() dma.Buffer { return d.buf }

// ReadSector leaves sector lba in the DMA buffer.
func (d *Drive) ReadSector(lba uint32) error {
	err := d.readSector(lba)
	if d.Observer != nil {
		d.Observer(lba, err)
	}
	return err
}

// ReadSectorInto reads sector lba and copies it out of the DMA buffer.
func (d *Drive) ReadSectorInto(lba uint32, dst []byte) error {
	if len(dst) < fdc.SectorSize {
		return fmt.Errorf("floppy: destination holds %d bytes, need %d", len(dst), fdc.SectorSize)
	}
	if err := d.ReadSector(lba); err != nil {
		return err
	}
	if _, err := d.mem.ReadAt(dst[:fdc.SectorSize], int64(d.buf.Addr)); err != nil {
		return fmt.Errorf("floppy: copy dma buffer: %w", err)
	}
	return nil
}

func (d *Drive) readSector(lba uint32) error {
	pos := chs.FromLBA(lba)
	if err := d.fdc.Seek(pos.Cylinder, pos.Head); err != nil {
		return &SectorError{LBA: lba, CHS: pos, Err: ErrSeek, Cause: err}
	}

	motor := d.fdc.Motor()
	var last *SectorError
	for attempt := 1; attempt <= d.retries; attempt++ {
		res, err := d.transfer(pos)
		var faults fdc.Fault
		if err == nil {
			faults = res.Faults()
		}
		if errors.Is(err, dma.ErrBufferPlacement) {
			motor.Off()
			return fmt.Errorf("floppy: read lba %d: %w", lba, err)
		}
		if err == nil && faults == 0 {
			motor.Off()
			return nil
		}
		if err == nil && !faults.Retryable() {
			d.out.Printf("floppy: lba %d: %s, not retrying", lba, describe(res, faults))
			motor.Off()
			return &SectorError{LBA: lba, CHS: pos, Attempts: attempt, Faults: faults, Err: ErrNotRetryable}
		}
		last = &SectorError{LBA: lba, CHS: pos, Attempts: attempt, Faults: faults, Err: ErrRetryableFault, Cause: err}
		if err != nil {
			d.out.Printf("floppy: lba %d attempt %d: %v", lba, attempt, err)
		} else {
			d.out.Printf("floppy: lba %d attempt %d: %s", lba, attempt, describe(res, faults))
		}
	}

	motor.Off()
	d.out.Printf("floppy: lba %d: %d retries exhausted", lba, d.retries)
	se := &SectorError{LBA: lba, CHS: pos, Attempts: d.retries, Err: ErrRetriesExhausted}
	if last != nil {
		se.Faults = last.Faults
		se.Cause = last
	}
	return se
}

// describe names the faults, adding the sector size the controller
// reported when it was not the one asked for.
func describe(res fdc.Result, f fdc.Fault) string {
	if f&fdc.FaultSectorSize == 0 {
		return f.String()
	}
	return fmt.Sprintf("%s (wanted %dB/sector, got %d)", f, fdc.SectorSize, fdc.SectorBytes(res.SizeCode))
}

// transfer runs one READ DATA attempt and returns its result phase.
func (d *Drive) transfer(pos chs.CHS) (fdc.Result, error) {
	d.fdc.Motor().On()
	if err := d.dma.Arm(d.buf, fdc.SectorSize, dma.Read); err != nil {
		return fdc.Result{}, err
	}
	d.clock.Sleep(d.settle)

	// EOT is the requested sector so exactly one sector moves.
	err := d.fdc.Command(
		fdc.CmdReadData|fdc.FlagMT|fdc.FlagMFM,
		d.fdc.HeadSelect(pos.Head),
		byte(pos.Cylinder),
		pos.Head,
		pos.Sector,
		fdc.SizeCode512,
		pos.Sector,
		fdc.Gap3,
		fdc.DataLength,
	)
	if err != nil {
		return fdc.Result{}, err
	}
	// no SENSE INTERRUPT after a data command; the result phase carries status
	d.fdc.WaitIRQ()
	res, err := d.fdc.ReadResult()
	if err != nil {
		return fdc.Result{}, err
	}
	return res, nil
}
