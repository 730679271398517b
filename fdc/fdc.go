// Package fdc drives the primary floppy disk controller: command and result
// bytes through the FIFO, the motor, reset, recalibration and seeks.
package fdc

import (
	"errors"
	"fmt"
	"time"

	"fdboot/hw"
)

// Register offsets from the controller base.
const (
	RegDOR  = 2 // digital output, write only
	RegMSR  = 4 // main status, read only
	RegFIFO = 5 // data FIFO
	RegCCR  = 7 // configuration control, write only
)

// Command opcodes.
const (
	CmdSpecify        = 0x03
	CmdWriteData      = 0x05
	CmdReadData       = 0x06
	CmdRecalibrate    = 0x07
	CmdSenseInterrupt = 0x08
	CmdSeek           = 0x0F

	FlagMT  = 0x80 // multitrack
	FlagMFM = 0x40
)

// DOR bits:
//
//	 7    6    5    4    3   2    1   0
//	MOTD MOTC MOTB MOTA DMA NRST DR1 DR0
const (
	dorDisabled = 0x00
	dorMotorOff = 0x0C // DMA/IRQ enabled, not reset, drive 0
	dorMotorOn  = 0x1C
)

const (
	msrReady = 0x80

	// SPECIFY: step rate 3 ms, head unload 240 ms, head load 16 ms, DMA mode.
	specifyStepUnload = 0xDF
	specifyLoadDMA    = 0x02

	rate500K = 0x00
)

const (
	SectorSize  = 512
	SizeCode512 = 2    // 128 << 2
	Gap3        = 0x1B // 3.5" default
	DataLength  = 0xFF // unused when the size code is non-zero
)

var (
	ErrWriteTimeout      = errors.New("fdc: timeout writing command")
	ErrReadTimeout       = errors.New("fdc: timeout reading data")
	ErrCalibrationFailed = errors.New("fdc: calibration failed")
	ErrSeekFailed        = errors.New("fdc: seek failed")
)

// Config holds the controller location and timing policy.
type Config struct {
	Base  uint16
	IRQ   int
	Drive uint8

	PollAttempts   int // FIFO ready polls per byte
	PollIntervalMs int
	SpinUpMs       int
	MotorOffDelay  time.Duration
	SettleMs       int // after a seek, before a transfer

	PositionRetries int // recalibrate and seek attempts
	TransferRetries int // data transfer attempts
}

// DefaultConfig is the primary controller at 0x3F0 on IRQ 6.
func DefaultConfig() Config {
	return Config{
		Base:            0x3F0,
		IRQ:             6,
		Drive:           0,
		PollAttempts:    600,
		PollIntervalMs:  10,
		SpinUpMs:        500,
		MotorOffDelay:   3 * time.Second,
		SettleMs:        100,
		PositionRetries: 10,
		TransferRetries: 20,
	}
}

// Controller owns the one floppy controller in the machine. It supports a
// single outstanding command at a time.
type Controller struct {
	cfg   Config
	ports hw.Ports
	clock hw.Clock
	irq   hw.IRQ
	out   hw.Printer
	motor *Motor
}

func New(cfg Config, ports hw.Ports, clock hw.Clock, irq hw.IRQ, out hw.Printer) *Controller {
	return &Controller{
		cfg:   cfg,
		ports: ports,
		clock: clock,
		irq:   irq,
		out:   out,
		motor: newMotor(cfg, ports, clock, out),
	}
}

func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) Motor() *Motor { return c.motor }

// SetMotor turns the motor on now, or schedules it off.
func (c *Controller) SetMotor(on bool) {
	if on {
		c.motor.On()
	} else {
		c.motor.Off()
	}
}

// WaitIRQ blocks until the controller interrupts.
func (c *Controller) WaitIRQ() {
	c.irq.Wait(c.cfg.IRQ)
}

func (c *Controller) fifoReady() bool {
	return c.ports.In8(c.cfg.Base+RegMSR)&msrReady != 0
}

// WriteCommand sends one command or parameter byte.
func (c *Controller) WriteCommand(b byte) error {
	if !PollUntil(c.clock, c.cfg.PollAttempts, c.cfg.PollIntervalMs, c.fifoReady) {
		c.out.Printf("fdc: write command %#02x: timeout", b)
		return ErrWriteTimeout
	}
	c.ports.Out8(c.cfg.Base+RegFIFO, b)
	return nil
}

// Command sends an opcode and its parameters, stopping at the first timeout.
func (c *Controller) Command(b ...byte) error {
	for _, v := range b {
		if err := c.WriteCommand(v); err != nil {
			return err
		}
	}
	return nil
}

// ReadData reads one result byte.
func (c *Controller) ReadData() (byte, error) {
	if !PollUntil(c.clock, c.cfg.PollAttempts, c.cfg.PollIntervalMs, c.fifoReady) {
		c.out.Printf("fdc: read data: timeout")
		return 0, ErrReadTimeout
	}
	return c.ports.In8(c.cfg.Base + RegFIFO), nil
}

// SenseInterrupt acknowledges a seek, recalibrate or reset interrupt.
func (c *Controller) SenseInterrupt() (st0, cyl byte, err error) {
	if err = c.WriteCommand(CmdSenseInterrupt); err != nil {
		return 0, 0, err
	}
	if st0, err = c.ReadData(); err != nil {
		return 0, 0, err
	}
	if cyl, err = c.ReadData(); err != nil {
		return 0, 0, err
	}
	return st0, cyl, nil
}

// ReadResult reads the result phase of a read or write data command.
func (c *Controller) ReadResult() (Result, error) {
	var b [7]byte
	for i := range b {
		v, err := c.ReadData()
		if err != nil {
			return Result{}, err
		}
		b[i] = v
	}
	return Result{
		ST0: b[0], ST1: b[1], ST2: b[2],
		Cylinder: b[3], Head: b[4], Sector: b[5],
		SizeCode: b[6],
	}, nil
}

// HeadSelect is the 0:0:0:0:0:HD:US1:US0 parameter byte.
func (c *Controller) HeadSelect(head uint8) byte {
	return head<<2 | c.cfg.Drive&0x03
}

// Reset pulses the controller reset line, reprograms timing, and
// recalibrates drive 0.
func (c *Controller) Reset() error {
	dor := c.cfg.Base + RegDOR
	c.ports.Out8(dor, dorDisabled)
	c.ports.Out8(dor, dorMotorOff)
	c.motor.reset()

	c.WaitIRQ()
	// one status per drive slot after a reset
	for i := 0; i < 4; i++ {
		if _, _, err := c.SenseInterrupt(); err != nil {
			return fmt.Errorf("fdc: reset: %w", err)
		}
	}

	c.ports.Out8(c.cfg.Base+RegCCR, rate500K)
	if err := c.Command(CmdSpecify, specifyStepUnload, specifyLoadDMA); err != nil {
		return fmt.Errorf("fdc: reset: specify: %w", err)
	}
	return c.Calibrate()
}

// Calibrate moves the heads to cylinder 0.
func (c *Controller) Calibrate() error {
	c.motor.On()
	defer c.motor.Off()

	for i := 0; i < c.cfg.PositionRetries; i++ {
		if err := c.Command(CmdRecalibrate, c.cfg.Drive&0x03); err != nil {
			continue
		}
		c.WaitIRQ()
		st0, cyl, err := c.SenseInterrupt()
		if err != nil {
			continue
		}
		if st0&0xC0 != 0 {
			c.out.Printf("fdc: calibrate: status = %s", interruptCode(st0))
			continue
		}
		if cyl == 0 {
			return nil
		}
	}
	c.out.Printf("fdc: calibrate: %d retries exhausted", c.cfg.PositionRetries)
	return ErrCalibrationFailed
}

// Seek positions the given head over cylinder cyl.
func (c *Controller) Seek(cyl uint16, head uint8) error {
	c.motor.On()
	defer c.motor.Off()

	for i := 0; i < c.cfg.PositionRetries; i++ {
		if err := c.Command(CmdSeek, c.HeadSelect(head), byte(cyl)); err != nil {
			continue
		}
		c.WaitIRQ()
		st0, pcn, err := c.SenseInterrupt()
		if err != nil {
			continue
		}
		if st0&0xC0 != 0 {
			c.out.Printf("fdc: seek: status = %s", interruptCode(st0))
			continue
		}
		if uint16(pcn) == cyl {
			return nil
		}
	}
	c.out.Printf("fdc: seek to cylinder %d: %d retries exhausted", cyl, c.cfg.PositionRetries)
	return fmt.Errorf("%w: cylinder %d head %d", ErrSeekFailed, cyl, head)
}
