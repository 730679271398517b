package fdc

import (
	"fmt"
	"strings"
)

// Result holds the seven bytes a data transfer command returns.
type Result struct {
	ST0, ST1, ST2 byte
	Cylinder      byte
	Head          byte
	Sector        byte
	SizeCode      byte
}

// Fault is a set of decoded controller fault conditions.
type Fault uint32

const (
	FaultAbnormal Fault = 1 << iota
	FaultInvalidCommand
	FaultPolling
	FaultEndOfCylinder
	FaultDriveNotReady
	FaultCRC
	FaultTimeout
	FaultNoData
	FaultNoAddressMark
	FaultDeletedAddressMark
	FaultDataCRC
	FaultWrongCylinder
	FaultSectorNotFound
	FaultBadCylinder
	FaultSectorSize
	FaultNotWritable
)

var faultNames = []struct {
	f    Fault
	name string
}{
	{FaultAbnormal, "error"},
	{FaultInvalidCommand, "invalid command"},
	{FaultPolling, "drive not ready"},
	{FaultEndOfCylinder, "end of cylinder"},
	{FaultDriveNotReady, "drive not ready"},
	{FaultCRC, "CRC error"},
	{FaultTimeout, "controller timeout"},
	{FaultNoData, "no data found"},
	{FaultNoAddressMark, "no address mark found"},
	{FaultDeletedAddressMark, "deleted address mark"},
	{FaultDataCRC, "CRC error in data"},
	{FaultWrongCylinder, "wrong cylinder"},
	{FaultSectorNotFound, "sector not found"},
	{FaultBadCylinder, "bad cylinder"},
	{FaultSectorSize, "unexpected sector size"},
	{FaultNotWritable, "not writable"},
}

// interruptCode names the ST0 bits 7..6 value.
func interruptCode(st0 byte) string {
	return [...]string{"normal", "error", "invalid command", "drive not ready"}[st0>>6]
}

// Faults decodes the status bytes.
func (r Result) Faults() Fault {
	var f Fault
	switch r.ST0 >> 6 {
	case 1:
		f |= FaultAbnormal
	case 2:
		f |= FaultInvalidCommand
	case 3:
		f |= FaultPolling
	}
	if r.ST1&0x80 != 0 {
		f |= FaultEndOfCylinder
	}
	if r.ST0&0x08 != 0 {
		f |= FaultDriveNotReady
	}
	if r.ST1&0x20 != 0 {
		f |= FaultCRC
	}
	if r.ST1&0x10 != 0 {
		f |= FaultTimeout
	}
	if r.ST1&0x04 != 0 {
		f |= FaultNoData
	}
	if (r.ST1|r.ST2)&0x01 != 0 {
		f |= FaultNoAddressMark
	}
	if r.ST2&0x40 != 0 {
		f |= FaultDeletedAddressMark
	}
	if r.ST2&0x20 != 0 {
		f |= FaultDataCRC
	}
	if r.ST2&0x10 != 0 {
		f |= FaultWrongCylinder
	}
	if r.ST2&0x04 != 0 {
		f |= FaultSectorNotFound
	}
	if r.ST2&0x02 != 0 {
		f |= FaultBadCylinder
	}
	if r.SizeCode != SizeCode512 {
		f |= FaultSectorSize
	}
	if r.ST1&0x02 != 0 {
		f |= FaultNotWritable
	}
	return f
}

// Retryable is false for write-protected media; everything else may clear
// on another attempt.
func (f Fault) Retryable() bool {
	return f&FaultNotWritable == 0
}

// Causes lists the decoded conditions in controller order.
func (f Fault) Causes() []string {
	var out []string
	for _, n := range faultNames {
		if f&n.f != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Causes(), ", ")
}

// SectorBytes is the size a size code stands for.
func SectorBytes(code byte) int {
	if code > 7 {
		return 0
	}
	return 128 << code
}

func (r Result) String() string {
	return fmt.Sprintf("st0=%#02x st1=%#02x st2=%#02x c=%d h=%d s=%d n=%d",
		r.ST0, r.ST1, r.ST2, r.Cylinder, r.Head, r.Sector, r.SizeCode)
}
