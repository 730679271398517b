//go:build !linux

package hw

// DevPort is only implemented on linux.
type DevPort struct{}

func OpenDevPort() (*DevPort, error) { return nil, ErrNoDevPort }

func (d *DevPort) In8(uint16) uint8     { return 0xFF }
func (d *DevPort) Out8(uint16, uint8)   {}
func (d *DevPort) In16(uint16) uint16   { return 0xFFFF }
func (d *DevPort) Out16(uint16, uint16) {}
func (d *DevPort) In32(uint16) uint32   { return 0xFFFFFFFF }
func (d *DevPort) Out32(uint16, uint32) {}
func (d *DevPort) Err() error           { return ErrNoDevPort }
func (d *DevPort) Close() error         { return nil }
