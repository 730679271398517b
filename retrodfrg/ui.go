// Package retrodfrg is a full-screen boot console: a title, summary lines, a
// map with one glyph per disk sector, boot phases and a scrolling status log.
package retrodfrg

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned when the user requests to stop.
var ErrInterrupted = errors.New("interrupted")

// maxStatusLines bounds the status log kept for redraws.
const maxStatusLines = 64

// UI renders boot progress. Printf makes it usable as the status printer of
// the driver stack; all methods are safe for concurrent use.
type UI struct {
	mu       sync.Mutex
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once

	title        string
	phases       []string
	phaseDoneMap map[string]bool
	summaryLines []string
	legendLines  []string
	statusLines  []string

	sectors *SectorMap
}

// NewUI takes over the terminal.
func NewUI() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewUIWithScreen(s)
}

// NewUIWithScreen runs the UI on an existing screen, e.g. a simulation
// screen in tests.
func NewUIWithScreen(s tcell.Screen) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:            s,
		stopChan:     make(chan struct{}),
		phaseDoneMap: make(map[string]bool),
	}
	go u.eventLoop()
	return u, nil
}

// Close restores the terminal.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.RequestStop()
	u.s.Fini()
	u.s = nil
}

// RequestStop signals that the user wants out. Safe to call repeatedly.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		if u.s != nil {
			u.s.PostEvent(tcell.NewEventInterrupt(nil))
		}
	})
}

// IsStopped reports whether a stop was requested.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Size returns the current screen width and height.
func (u *UI) Size() (width, height int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, tcell.StyleDefault)
	}
}

// Printf appends a line to the status log and redraws.
func (u *UI) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	u.mu.Lock()
	u.statusLines = append(u.statusLines, line)
	if len(u.statusLines) > maxStatusLines {
		u.statusLines = u.statusLines[len(u.statusLines)-maxStatusLines:]
	}
	u.mu.Unlock()
	u.LayoutAndDraw()
}

// StatusLines returns a copy of the status log.
func (u *UI) StatusLines() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.statusLines...)
}

// LayoutAndDraw redraws the whole screen.
func (u *UI) LayoutAndDraw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()

	y := 0
	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w))
		putStr(u.s, (w-len(u.title))/2, y, u.title)
		y++
	}
	for _, line := range u.summaryLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}
	for _, line := range u.legendLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}

	// the status block gets whatever the map leaves, at least 5 rows
	statusRows := min(len(u.statusLines), max(5, h/3))
	if u.sectors != nil {
		rows := h - y - statusRows - 3
		if rows < 1 {
			rows = 1
		}
		for _, line := range u.sectors.Render(w, rows) {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line)
			y++
		}
	}

	if len(u.phases) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Phase ")
		y++
		b := strings.Builder{}
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDoneMap[strings.ToLower(p)] {
				mark = '✓'
			}
			b.WriteString(fmt.Sprintf("[%c]%s", mark, p))
		}
		putStr(u.s, 0, y, b.String())
		y++
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Status ")
		y++
		tail := u.statusLines[len(u.statusLines)-min(len(u.statusLines), h-y):]
		for _, line := range tail {
			putStr(u.s, 0, y, line)
			y++
		}
	}

	u.s.Show()
}

// SetPhaseDone marks a phase complete. Names are case-insensitive.
func (u *UI) SetPhaseDone(p string) {
	u.mu.Lock()
	u.phaseDoneMap[strings.ToLower(p)] = true
	u.mu.Unlock()
}

func (u *UI) SetPhases(labels []string) {
	u.mu.Lock()
	u.phases = append([]string(nil), labels...)
	u.mu.Unlock()
}

func (u *UI) SetTitle(t string) {
	u.mu.Lock()
	u.title = t
	u.mu.Unlock()
}

func (u *UI) SetSummaryLines(lines []string) {
	u.mu.Lock()
	u.summaryLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

func (u *UI) SetLegend(lines []string) {
	u.mu.Lock()
	u.legendLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

// SetSectorMap attaches the map drawn between the summary and the phases.
func (u *UI) SetSectorMap(m *SectorMap) {
	u.mu.Lock()
	u.sectors = m
	u.mu.Unlock()
}

func (u *UI) eventLoop() {
	for {
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s == nil || u.IsStopped() {
			return
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC,
				ev.Key() == tcell.KeyEscape,
				ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt, nil:
			return
		}
	}
}
