//go:build linux

package hw

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// DevPort reaches real I/O ports through /dev/port. The kernel splits wide
// accesses into consecutive byte accesses. Requires CAP_SYS_RAWIO.
type DevPort struct {
	fd  int
	err error
}

func OpenDevPort() (*DevPort, error) {
	fd, err := unix.Open("/dev/port", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &DevPort{fd: fd}, nil
}

func (d *DevPort) read(port uint16, b []byte) {
	if _, err := unix.Pread(d.fd, b, int64(port)); err != nil && d.err == nil {
		d.err = err
	}
}

func (d *DevPort) write(port uint16, b []byte) {
	if _, err := unix.Pwrite(d.fd, b, int64(port)); err != nil && d.err == nil {
		d.err = err
	}
}

func (d *DevPort) In8(port uint16) uint8 {
	var b [1]byte
	d.read(port, b[:])
	return b[0]
}

func (d *DevPort) Out8(port uint16, v uint8) { d.write(port, []byte{v}) }

func (d *DevPort) In16(port uint16) uint16 {
	var b [2]byte
	d.read(port, b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (d *DevPort) Out16(port uint16, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	d.write(port, b[:])
}

func (d *DevPort) In32(port uint16) uint32 {
	var b [4]byte
	d.read(port, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (d *DevPort) Out32(port uint16, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	d.write(port, b[:])
}

// Err returns the first I/O error seen since open.
func (d *DevPort) Err() error { return d.err }

func (d *DevPort) Close() error { return unix.Close(d.fd) }
