package emu

import "sync"

// CPU records where control was handed.
type CPU struct {
	mu     sync.Mutex
	entry  uint32
	jumped bool
}

func (c *CPU) Jump(entry uint32) error {
	c.mu.Lock()
	c.entry, c.jumped = entry, true
	c.mu.Unlock()
	return nil
}

// Entry reports the jump target, if any.
func (c *CPU) Entry() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry, c.jumped
}
