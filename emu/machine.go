// Package emu is a small PC: RAM, the floppy channel of an 8237 DMA
// controller, a uPD765-compatible floppy controller with one 1.44 MB drive,
// and the CMOS drive-type byte. It stands in for hardware in tests and in
// the command-line tools.
package emu

import (
	"io"
	"sync"

	"fdboot/chs"
	"fdboot/dma"
	"fdboot/fdc"
	"fdboot/hw"
)

const (
	FDCBase  = 0x3F0
	FDCIRQ   = 6
	DiskSize = chs.Capacity * fdc.SectorSize
)

// Faults makes the controller misbehave. Counters are consumed one per
// affected command; a negative counter never runs out.
type Faults struct {
	CRCErrors       int  // data transfers ending with a data CRC error
	SeekErrors      int  // seeks ending abnormally
	CalibrateErrors int  // recalibrates ending abnormally
	SizeMismatches  int  // transfers whose result reports 1024-byte sectors
	NotWritable     bool // every transfer reports write-protected media
	Stall           bool // the FIFO never becomes ready
}

// Stats counts what the controller was asked to do.
type Stats struct {
	Resets          int
	Specifies       int
	Recalibrates    int
	Seeks           int
	SenseInterrupts int
	ReadCommands    int
	WriteCommands   int
	SectorsRead     int
	SectorsWritten  int
	SpinUps         int
}

type sense struct{ st0, pcn byte }

type dmaChannel struct {
	flip   bool
	addr   uint16
	count  uint16
	page   uint8
	mode   uint8
	masked bool
}

// Machine implements hw.Ports and hw.Memory.
type Machine struct {
	mu    sync.Mutex
	ram   []byte
	disk  []byte
	irq   *hw.Latch
	clock *Clock

	dor     uint8
	ccr     uint8
	specify [2]uint8
	track   uint8
	cmd     []byte
	result  []byte
	pending []sense

	dma     dmaChannel
	cmosIdx uint8
	cmos    [128]uint8

	faults Faults
	stats  Stats
}

// NewMachine inserts a copy of disk, padded to 1.44 MB, into drive 0.
func NewMachine(disk []byte, ramSize int) *Machine {
	m := &Machine{
		ram:   make([]byte, ramSize),
		disk:  make([]byte, DiskSize),
		irq:   hw.NewLatch(),
		clock: NewClock(),
		dor:   0x0C,
		dma:   dmaChannel{masked: true},
	}
	copy(m.disk, disk)
	m.cmos[0x10] = 0x40 // drive 0: 1.44MB 3.5", drive 1: none
	return m
}

func (m *Machine) IRQ() *hw.Latch { return m.irq }

func (m *Machine) Clock() *Clock { return m.clock }

func (m *Machine) SetFaults(f Faults) {
	m.mu.Lock()
	m.faults = f
	m.mu.Unlock()
}

func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// MotorOn reports the drive 0 motor line.
func (m *Machine) MotorOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dor&0x10 != 0
}

// Disk returns a copy of the media.
func (m *Machine) Disk() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.disk...)
}

func (m *Machine) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off >= int64(len(m.ram)) {
		return 0, io.EOF
	}
	n := copy(p, m.ram[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Machine) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.ram)) {
		return 0, io.ErrShortWrite
	}
	return copy(m.ram[off:], p), nil
}

func (m *Machine) In8(port uint16) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch port {
	case FDCBase + fdc.RegMSR:
		return m.msr()
	case FDCBase + fdc.RegFIFO:
		if len(m.result) == 0 {
			return 0
		}
		b := m.result[0]
		m.result = m.result[1:]
		return b
	case 0x71:
		return m.cmos[m.cmosIdx&0x7F]
	}
	return 0xFF
}

func (m *Machine) Out8(port uint16, v uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch port {
	case FDCBase + fdc.RegDOR:
		m.writeDOR(v)
	case FDCBase + fdc.RegFIFO:
		m.writeFIFO(v)
	case FDCBase + fdc.RegCCR:
		m.ccr = v
	case dma.PortMask:
		if v&0x03 == 2 {
			m.dma.masked = v&0x04 != 0
		}
	case dma.PortFlipFlop:
		m.dma.flip = false
	case dma.PortAddr:
		m.dma.addr = latch16(m.dma.addr, v, m.dma.flip)
		m.dma.flip = !m.dma.flip
	case dma.PortCount:
		m.dma.count = latch16(m.dma.count, v, m.dma.flip)
		m.dma.flip = !m.dma.flip
	case dma.PortPage:
		m.dma.page = v
	case dma.PortMode:
		if v&0x03 == 2 {
			m.dma.mode = v
		}
	case 0x70:
		m.cmosIdx = v
	}
}

func latch16(cur uint16, v uint8, high bool) uint16 {
	if high {
		return cur&0x00FF | uint16(v)<<8
	}
	return cur&0xFF00 | uint16(v)
}

// Wide accesses are split into byte accesses, as /dev/port does.
func (m *Machine) In16(port uint16) uint16 {
	return uint16(m.In8(port)) | uint16(m.In8(port+1))<<8
}

func (m *Machine) Out16(port uint16, v uint16) {
	m.Out8(port, uint8(v))
	m.Out8(port+1, uint8(v>>8))
}

func (m *Machine) In32(port uint16) uint32 {
	return uint32(m.In16(port)) | uint32(m.In16(port+2))<<16
}

func (m *Machine) Out32(port uint16, v uint32) {
	m.Out16(port, uint16(v))
	m.Out16(port+2, uint16(v>>16))
}
