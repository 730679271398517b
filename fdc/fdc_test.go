package fdc_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fdboot/emu"
	"fdboot/fdc"
	"fdboot/hw"
)

// lines collects status output.
type lines struct {
	mu  sync.Mutex
	all []string
}

func (l *lines) Printf(format string, args ...any) {
	l.mu.Lock()
	l.all = append(l.all, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *lines) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.all {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func newController(t *testing.T, f emu.Faults) (*fdc.Controller, *emu.Machine, *lines) {
	t.Helper()
	m := emu.NewMachine(nil, 1<<20)
	m.SetFaults(f)
	out := &lines{}
	return fdc.New(fdc.DefaultConfig(), m, m.Clock(), m.IRQ(), out), m, out
}

func TestPollUntil(t *testing.T) {
	tests := []struct {
		name    string
		readyAt int // check number that succeeds, 0 for never
		want    bool
		slept   time.Duration
	}{
		{"ready at once", 1, true, 0},
		{"ready on third", 3, true, 20 * time.Millisecond},
		{"never", 0, false, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := emu.NewClock()
			n := 0
			got := fdc.PollUntil(clock, 5, 10, func() bool {
				n++
				return n == tt.readyAt
			})
			if got != tt.want {
				t.Fatalf("PollUntil = %v, want %v", got, tt.want)
			}
			if clock.Elapsed() != tt.slept {
				t.Fatalf("slept %v, want %v", clock.Elapsed(), tt.slept)
			}
		})
	}
}

func TestMotorStateMachine(t *testing.T) {
	c, m, out := newController(t, emu.Faults{})
	motor := c.Motor()
	clock := m.Clock()
	cfg := c.Config()

	if st, _ := motor.State(); st != fdc.MotorOff {
		t.Fatalf("initial state %s", st)
	}
	motor.Off()
	if st, _ := motor.State(); st != fdc.MotorOff {
		t.Fatalf("Off while off moved to %s", st)
	}

	motor.On()
	if !m.MotorOn() || clock.Elapsed() != time.Duration(cfg.SpinUpMs)*time.Millisecond {
		t.Fatalf("first On: motor line %v after %v", m.MotorOn(), clock.Elapsed())
	}
	before := clock.Elapsed()
	motor.On()
	if clock.Elapsed() != before {
		t.Fatal("On while on waited for spin-up")
	}

	motor.Off()
	st, deadline := motor.State()
	if st != fdc.MotorPendingOff || !deadline.Equal(clock.Now().Add(cfg.MotorOffDelay)) {
		t.Fatalf("Off: state %s deadline %v", st, deadline)
	}
	if !m.MotorOn() {
		t.Fatal("Off cut power immediately")
	}

	clock.Advance(cfg.MotorOffDelay - time.Millisecond)
	motor.Tick()
	if st, _ := motor.State(); st != fdc.MotorPendingOff {
		t.Fatalf("Tick before deadline moved to %s", st)
	}

	// On cancels the pending power-off without another spin-up
	before = clock.Elapsed()
	motor.On()
	if st, _ := motor.State(); st != fdc.MotorOn || clock.Elapsed() != before {
		t.Fatalf("On while pending: state %s, waited %v", st, clock.Elapsed()-before)
	}

	motor.Off()
	motor.Off()
	if !out.contains("already waiting") {
		t.Error("second Off was not reported")
	}
	clock.Advance(cfg.MotorOffDelay)
	motor.Tick()
	if st, _ := motor.State(); st != fdc.MotorOff || m.MotorOn() {
		t.Fatalf("after deadline: state %s, motor line %v", st, m.MotorOn())
	}
	if got := m.Stats().SpinUps; got != 1 {
		t.Fatalf("%d spin-ups, want 1", got)
	}
}

func TestReset(t *testing.T) {
	c, m, _ := newController(t, emu.Faults{})
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	s := m.Stats()
	if s.Resets != 1 || s.Specifies != 1 || s.Recalibrates != 1 {
		t.Fatalf("stats %+v", s)
	}
	// four after the reset, one after the recalibrate
	if s.SenseInterrupts != 5 {
		t.Fatalf("%d sense interrupts, want 5", s.SenseInterrupts)
	}
	if m.IRQ().Pending(emu.FDCIRQ) {
		t.Fatal("interrupt left pending")
	}
	if st, _ := c.Motor().State(); st != fdc.MotorPendingOff {
		t.Fatalf("motor %s after reset, want pending-off", st)
	}
}

func TestResetStalledController(t *testing.T) {
	c, _, out := newController(t, emu.Faults{Stall: true})
	err := c.Reset()
	if !errors.Is(err, fdc.ErrWriteTimeout) {
		t.Fatalf("Reset = %v, want ErrWriteTimeout", err)
	}
	if !out.contains("timeout") {
		t.Error("timeout was not reported")
	}
}

func TestCalibrateRetries(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
		attempts int
	}{
		{"first try", 0, false, 1},
		{"last try", 9, false, 10},
		{"exhausted", -1, true, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m, _ := newController(t, emu.Faults{CalibrateErrors: tt.failures})
			err := c.Calibrate()
			if tt.wantErr != errors.Is(err, fdc.ErrCalibrationFailed) || (!tt.wantErr && err != nil) {
				t.Fatalf("Calibrate = %v", err)
			}
			if got := m.Stats().Recalibrates; got != tt.attempts {
				t.Fatalf("%d recalibrates, want %d", got, tt.attempts)
			}
		})
	}
}

func TestSeek(t *testing.T) {
	tests := []struct {
		name     string
		cyl      uint16
		failures int
		wantErr  bool
		attempts int
	}{
		{"middle", 40, 0, false, 1},
		{"last cylinder", 79, 0, false, 1},
		{"recovers", 12, 3, false, 4},
		{"exhausted", 12, -1, true, 10},
		{"off the media", 80, 0, true, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m, _ := newController(t, emu.Faults{SeekErrors: tt.failures})
			err := c.Seek(tt.cyl, 1)
			if tt.wantErr != errors.Is(err, fdc.ErrSeekFailed) || (!tt.wantErr && err != nil) {
				t.Fatalf("Seek(%d) = %v", tt.cyl, err)
			}
			if got := m.Stats().Seeks; got != tt.attempts {
				t.Fatalf("%d seeks, want %d", got, tt.attempts)
			}
		})
	}
}

func TestHeadSelect(t *testing.T) {
	cfg := fdc.DefaultConfig()
	cfg.Drive = 1
	c := fdc.New(cfg, emu.NewMachine(nil, 0), emu.NewClock(), hw.NewLatch(), hw.Discard)
	if got := c.HeadSelect(1); got != 0x05 {
		t.Fatalf("HeadSelect(1) = %#02x, want 0x05", got)
	}
}
