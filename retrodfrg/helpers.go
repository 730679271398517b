package retrodfrg

import (
	"strings"
	"sync"
	"time"
)

// Sector map glyphs.
const (
	GlyphRead   = '█'
	GlyphFree   = '░'
	GlyphSystem = '■'
	GlyphFailed = 'x'
)

// SectorMap tracks one cell per sector.
type SectorMap struct {
	mu      sync.Mutex
	read    []bool
	failed  []bool
	system  [][2]int64
	current int64
}

// NewSectorMap covers total sectors; system ranges are inclusive and drawn
// with GlyphSystem until read.
func NewSectorMap(total int64, system [][2]int64) *SectorMap {
	return &SectorMap{
		read:   make([]bool, total),
		failed: make([]bool, total),
		system: system,
	}
}

// MarkSector records the outcome of reading lba. Out of range is ignored.
func (m *SectorMap) MarkSector(lba int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lba < 0 || lba >= int64(len(m.read)) {
		return
	}
	m.read[lba] = ok
	m.failed[lba] = !ok
	m.current = lba
}

// ReadCount returns how many sectors were read successfully.
func (m *SectorMap) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.read {
		if r {
			n++
		}
	}
	return n
}

func (m *SectorMap) inSystem(abs int64) bool {
	for _, r := range m.system {
		if abs >= r[0] && abs <= r[1] {
			return true
		}
	}
	return false
}

// Render lays the map out in rows of w cells, scrolling so the last marked
// sector stays visible when the disk does not fit.
func (m *SectorMap) Render(w, rows int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := int64(len(m.read))
	if total == 0 || w <= 0 || rows <= 0 {
		return nil
	}

	cells := int64(w * rows)
	start := int64(0)
	if total > cells {
		if m.current >= cells-1 {
			start = m.current - (cells - 1)
		}
		if start+cells > total {
			start = total - cells
		}
		if start < 0 {
			start = 0
		}
	}

	lines := make([]string, 0, rows)
	for row := 0; row < rows; row++ {
		var b strings.Builder
		b.Grow(w)
		for col := 0; col < w; col++ {
			abs := start + int64(row*w+col)
			if abs >= total {
				break
			}
			var r rune = GlyphFree
			switch {
			case m.read[abs]:
				r = GlyphRead
			case m.failed[abs]:
				r = GlyphFailed
			case m.inSystem(abs):
				r = GlyphSystem
			}
			b.WriteRune(r)
		}
		if b.Len() == 0 {
			break
		}
		lines = append(lines, b.String())
	}
	return lines
}

// WaitWithStop holds the final screen for d, or until the user quits.
func WaitWithStop(u *UI, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-u.stopChan:
		return ErrInterrupted
	case <-timer.C:
		return nil
	}
}
