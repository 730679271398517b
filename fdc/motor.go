package fdc

import (
	"sync"
	"time"

	"fdboot/hw"
)

// MotorState of drive 0.
type MotorState int

const (
	MotorOff MotorState = iota
	MotorOn
	MotorPendingOff
)

func (s MotorState) String() string {
	switch s {
	case MotorOff:
		return "off"
	case MotorOn:
		return "on"
	case MotorPendingOff:
		return "pending-off"
	}
	return "unknown"
}

// Motor defers power-off so back to back operations do not spin the drive
// down and up again. Tick is driven by the system timer and may run
// concurrently with On and Off.
type Motor struct {
	mu       sync.Mutex
	state    MotorState
	deadline time.Time

	ports    hw.Ports
	dor      uint16
	clock    hw.Clock
	out      hw.Printer
	spinUp   int
	offDelay time.Duration
}

func newMotor(cfg Config, ports hw.Ports, clock hw.Clock, out hw.Printer) *Motor {
	return &Motor{
		ports:    ports,
		dor:      cfg.Base + RegDOR,
		clock:    clock,
		out:      out,
		spinUp:   cfg.SpinUpMs,
		offDelay: cfg.MotorOffDelay,
	}
}

// On powers the motor, waiting for spin-up only if it was fully off. Any
// pending power-off is cancelled.
func (m *Motor) On() {
	m.mu.Lock()
	wasOff := m.state == MotorOff
	if wasOff {
		m.ports.Out8(m.dor, dorMotorOn)
	}
	m.state = MotorOn
	m.deadline = time.Time{}
	m.mu.Unlock()

	if wasOff {
		m.clock.Sleep(m.spinUp)
	}
}

// Off arms the power-off timeout.
func (m *Motor) Off() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case MotorOff:
		return
	case MotorPendingOff:
		m.out.Printf("fdc: motor already waiting to power off")
	}
	m.state = MotorPendingOff
	m.deadline = m.clock.Now().Add(m.offDelay)
}

// Tick cuts power once a pending power-off has lapsed.
func (m *Motor) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MotorPendingOff || m.clock.Now().Before(m.deadline) {
		return
	}
	m.ports.Out8(m.dor, dorMotorOff)
	m.state = MotorOff
	m.deadline = time.Time{}
}

// State returns the current state and, when pending, its deadline.
func (m *Motor) State() (MotorState, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.deadline
}

// reset records that a controller reset dropped the motor line.
func (m *Motor) reset() {
	m.mu.Lock()
	m.state = MotorOff
	m.deadline = time.Time{}
	m.mu.Unlock()
}
