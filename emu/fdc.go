package emu

import (
	"fdboot/chs"
	"fdboot/fdc"
)

// ST0 bits.
const (
	st0Abnormal  = 0x40
	st0Invalid   = 0x80
	st0SeekEnd   = 0x20
	st0NotReady  = 0x08
	st1NotWrite  = 0x02
	st1NoData    = 0x04
	st1Overrun   = 0x10
	st1CRC       = 0x20
	st2NotFound  = 0x04
	st2WrongCyl  = 0x10
	st2DataCRC   = 0x20
	dorNotReset  = 0x04
	dorMotorA    = 0x10
	msrBusy      = 0x10
	msrDIO       = 0x40
	msrRQM       = 0x80
	modeTransfer = 0x0C
)

func (m *Machine) msr() uint8 {
	if m.faults.Stall {
		return 0
	}
	v := uint8(msrRQM)
	switch {
	case len(m.result) > 0:
		v |= msrDIO | msrBusy
	case len(m.cmd) > 0:
		v |= msrBusy
	}
	return v
}

func (m *Machine) writeDOR(v uint8) {
	prev := m.dor
	m.dor = v
	if prev&dorMotorA == 0 && v&dorMotorA != 0 {
		m.stats.SpinUps++
	}
	if prev&dorNotReset == 0 && v&dorNotReset != 0 {
		m.stats.Resets++
		m.cmd = nil
		m.result = nil
		m.pending = m.pending[:0]
		for d := uint8(0); d < 4; d++ {
			m.pending = append(m.pending, sense{st0: 0xC0 | d, pcn: 0})
		}
		m.irq.Raise(FDCIRQ)
	}
}

func commandLength(op byte) int {
	switch op & 0x1F {
	case fdc.CmdSpecify, fdc.CmdSeek:
		return 3
	case fdc.CmdRecalibrate:
		return 2
	case fdc.CmdReadData, fdc.CmdWriteData:
		return 9
	}
	return 1
}

func (m *Machine) writeFIFO(v uint8) {
	if m.dor&dorNotReset == 0 {
		return
	}
	m.cmd = append(m.cmd, v)
	if len(m.cmd) < commandLength(m.cmd[0]) {
		return
	}
	c := m.cmd
	m.cmd = nil
	m.execute(c)
}

func (m *Machine) interrupt(s sense) {
	m.pending = append(m.pending, s)
	m.irq.Raise(FDCIRQ)
}

// take consumes one unit of a fault counter.
func take(n *int) bool {
	switch {
	case *n > 0:
		*n--
		return true
	case *n < 0:
		return true
	}
	return false
}

func (m *Machine) execute(c []byte) {
	switch c[0] & 0x1F {
	case fdc.CmdSpecify:
		m.stats.Specifies++
		m.specify = [2]uint8{c[1], c[2]}

	case fdc.CmdRecalibrate:
		m.stats.Recalibrates++
		drive := c[1] & 0x03
		if take(&m.faults.CalibrateErrors) {
			m.interrupt(sense{st0: st0Abnormal | st0SeekEnd | drive, pcn: m.track})
			return
		}
		m.track = 0
		m.interrupt(sense{st0: st0SeekEnd | drive, pcn: 0})

	case fdc.CmdSeek:
		m.stats.Seeks++
		sel := c[1] & 0x07
		if take(&m.faults.SeekErrors) || c[2] >= chs.Cylinders {
			m.interrupt(sense{st0: st0Abnormal | st0SeekEnd | sel, pcn: m.track})
			return
		}
		m.track = c[2]
		m.interrupt(sense{st0: st0SeekEnd | sel, pcn: m.track})

	case fdc.CmdSenseInterrupt:
		m.stats.SenseInterrupts++
		if len(m.pending) == 0 {
			m.result = []byte{st0Invalid}
			return
		}
		s := m.pending[0]
		m.pending = m.pending[1:]
		m.result = []byte{s.st0, s.pcn}

	case fdc.CmdReadData, fdc.CmdWriteData:
		m.transfer(c)

	default:
		m.result = []byte{st0Invalid}
	}
}

// transfer runs READ DATA or WRITE DATA through the DMA channel.
func (m *Machine) transfer(c []byte) {
	write := c[0]&0x1F == fdc.CmdWriteData
	if write {
		m.stats.WriteCommands++
	} else {
		m.stats.ReadCommands++
	}
	sel, cyl, head, sec, size, eot := c[1]&0x07, c[2], c[3], c[4], c[5], c[6]

	done := func(st0, st1, st2, next byte) {
		m.result = []byte{st0 | sel, st1, st2, cyl, head, next, size}
		m.irq.Raise(FDCIRQ)
	}
	fail := func(st0, st1, st2 byte) { done(st0Abnormal|st0, st1, st2, sec) }

	pos := chs.CHS{Cylinder: uint16(cyl), Head: head, Sector: sec}
	switch {
	case m.dor&dorMotorA == 0:
		fail(st0NotReady, 0, 0)
		return
	case size != fdc.SizeCode512:
		fail(0, st1NoData, 0)
		return
	case cyl != m.track:
		fail(0, st1NoData, st2WrongCyl)
		return
	case !pos.Valid() || eot < sec:
		fail(0, st1NoData, st2NotFound)
		return
	case m.faults.NotWritable:
		fail(0, st1NotWrite, 0)
		return
	case take(&m.faults.CRCErrors):
		fail(0, st1CRC, st2DataCRC)
		return
	case take(&m.faults.SizeMismatches):
		size = fdc.SizeCode512 + 1
		done(0, 0, 0, sec)
		return
	}

	want := uint8(0x04) // write to memory
	if write {
		want = 0x08
	}
	if m.dma.masked || m.dma.mode&modeTransfer != want {
		fail(0, st1Overrun, 0)
		return
	}
	addr := int(m.dma.page)<<16 | int(m.dma.addr)
	n := min(int(m.dma.count)+1, int(eot-sec+1)*fdc.SectorSize)
	off := int(pos.LBA()) * fdc.SectorSize
	n = min(n, len(m.disk)-off)
	if addr+n > len(m.ram) {
		fail(0, st1Overrun, 0)
		return
	}
	if write {
		copy(m.disk[off:off+n], m.ram[addr:addr+n])
		m.stats.SectorsWritten += n / fdc.SectorSize
	} else {
		copy(m.ram[addr:addr+n], m.disk[off:off+n])
		m.stats.SectorsRead += n / fdc.SectorSize
	}
	// terminal count masks the channel again
	m.dma.masked = true
	done(0, 0, 0, sec+byte(n/fdc.SectorSize))
}
