package fat12

import "testing"

func TestTableNext(t *testing.T) {
	table := Table{0xF0, 0xFF, 0xFF, 0x03, 0x40, 0x00, 0xFF, 0x0F, 0x00, 0x12, 0x34, 0x56}
	tests := []struct {
		cluster uint16
		want    uint16
	}{
		{0, 0xFF0},
		{1, 0xFFF},
		{2, 0x003},
		{3, 0x004},
		{4, 0xFFF},
		{5, 0x000},
		{6, 0x412},
		{7, 0x563},
		{8, EndOfChain}, // past the end
	}
	for _, tt := range tests {
		if got := table.Next(tt.cluster); got != tt.want {
			t.Errorf("Next(%d) = %#03x, want %#03x", tt.cluster, got, tt.want)
		}
	}
}

func TestTableSetKeepsNeighbour(t *testing.T) {
	table := make(Table, 12)
	table.Set(2, 0xABC)
	table.Set(3, 0x123)
	table.Set(4, 0xFFF)
	table.Set(5, 0x7F7)
	want := map[uint16]uint16{2: 0xABC, 3: 0x123, 4: 0xFFF, 5: 0x7F7}
	for c, v := range want {
		if got := table.Next(c); got != v {
			t.Errorf("Next(%d) = %#03x, want %#03x", c, got, v)
		}
	}
	table.Set(3, 0x1FFF) // high bits dropped
	if got := table.Next(3); got != 0xFFF {
		t.Errorf("Next(3) = %#03x after 13-bit Set", got)
	}
	if got := table.Next(2); got != 0xABC {
		t.Errorf("Set(3) clobbered cluster 2: %#03x", got)
	}
}

func TestValidCluster(t *testing.T) {
	for c, want := range map[uint16]bool{0: false, 1: false, 2: true, 0xFEF: true, 0xFF0: false, 0xFF7: false, 0xFF8: false, 0xFFF: false} {
		if got := ValidCluster(c); got != want {
			t.Errorf("ValidCluster(%#03x) = %v, want %v", c, got, want)
		}
	}
}

func TestTableLen(t *testing.T) {
	if got := make(Table, 9*512).Len(); got != 3072 {
		t.Fatalf("Len() = %d, want 3072", got)
	}
}
