// Package dma programs ISA DMA channel 2 for single floppy transfers.
package dma

import (
	"errors"
	"fmt"

	"fdboot/hw"
)

// Direction of a transfer, seen from the controller.
type Direction int

const (
	Read  Direction = iota + 1 // controller to memory
	Write                      // memory to controller
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Channel 2 registers of the primary 8237.
const (
	PortMask     = 0x0A
	PortMode     = 0x0B
	PortFlipFlop = 0x0C
	PortAddr     = 0x04
	PortCount    = 0x05
	PortPage     = 0x81
)

const (
	maskChan2   = 0x06
	unmaskChan2 = 0x02

	// single, increment, no auto-init, channel 2
	ModeRead  = 0x46 // 01:0:0:01:10 write to memory
	ModeWrite = 0x4A // 01:0:0:10:10 read from memory
)

// ErrBufferPlacement means a buffer sits where the DMA controller cannot
// reach it. It is a layout bug, never a transient fault.
var ErrBufferPlacement = errors.New("dma: buffer placement")

// CheckPlacement verifies that [addr, addr+length) is below 16 MiB, fits the
// 16-bit count register, and does not cross a 64 KiB page.
func CheckPlacement(addr, length uint32) error {
	if length == 0 {
		return fmt.Errorf("%w: zero length at %#x", ErrBufferPlacement, addr)
	}
	count := length - 1
	switch {
	case addr>>24 != 0:
		return fmt.Errorf("%w: address %#x is above 16 MiB", ErrBufferPlacement, addr)
	case count>>16 != 0:
		return fmt.Errorf("%w: length %#x exceeds the 64 KiB count", ErrBufferPlacement, length)
	case ((addr&0xFFFF)+count)>>16 != 0:
		return fmt.Errorf("%w: %#x+%#x crosses a 64 KiB boundary", ErrBufferPlacement, addr, length)
	}
	return nil
}

// Buffer is the one transfer area shared by every floppy command.
type Buffer struct {
	Addr uint32
	Size uint32
}

// NewBuffer allocates size bytes aligned to the next power of two so the
// buffer can never straddle a 64 KiB page, and checks placement right away.
func NewBuffer(alloc hw.Allocator, size uint32) (Buffer, error) {
	align := uint32(1)
	for align < size {
		align <<= 1
	}
	addr, err := alloc.Alloc(size, align)
	if err != nil {
		return Buffer{}, fmt.Errorf("dma: allocate buffer: %w", err)
	}
	if err := CheckPlacement(addr, size); err != nil {
		return Buffer{}, err
	}
	return Buffer{Addr: addr, Size: size}, nil
}

// Channel is the floppy DMA channel.
type Channel struct {
	ports hw.Ports
}

func NewChannel(ports hw.Ports) *Channel {
	return &Channel{ports: ports}
}

// Arm prepares one transfer of length bytes through buf.
func (c *Channel) Arm(buf Buffer, length uint32, dir Direction) error {
	if length > buf.Size {
		return fmt.Errorf("%w: length %#x exceeds buffer size %#x", ErrBufferPlacement, length, buf.Size)
	}
	if err := CheckPlacement(buf.Addr, length); err != nil {
		return err
	}
	var mode uint8
	switch dir {
	case Read:
		mode = ModeRead
	case Write:
		mode = ModeWrite
	default:
		return fmt.Errorf("dma: invalid %s", dir)
	}

	addr := buf.Addr
	count := length - 1

	c.ports.Out8(PortMask, maskChan2)

	c.ports.Out8(PortFlipFlop, 0xFF)
	c.ports.Out8(PortAddr, uint8(addr))
	c.ports.Out8(PortAddr, uint8(addr>>8))

	c.ports.Out8(PortPage, uint8(addr>>16))

	c.ports.Out8(PortFlipFlop, 0xFF)
	c.ports.Out8(PortCount, uint8(count))
	c.ports.Out8(PortCount, uint8(count>>8))

	c.ports.Out8(PortMode, mode)

	c.ports.Out8(PortMask, unmaskChan2)
	return nil
}
