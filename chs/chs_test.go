package chs

import "testing"

func TestFromLBA(t *testing.T) {
	tests := []struct {
		lba  uint32
		want CHS
	}{
		{0, CHS{0, 0, 1}},
		{17, CHS{0, 0, 18}},
		{18, CHS{0, 1, 1}},
		{19, CHS{0, 1, 2}},
		{33, CHS{0, 1, 16}},
		{36, CHS{1, 0, 1}},
		{2879, CHS{79, 1, 18}},
	}
	for _, tt := range tests {
		if got := FromLBA(tt.lba); got != tt.want {
			t.Errorf("FromLBA(%d) = %s, want %s", tt.lba, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for lba := uint32(0); lba < Capacity; lba++ {
		c := FromLBA(lba)
		if !c.Valid() {
			t.Fatalf("FromLBA(%d) = %s is not valid", lba, c)
		}
		if got := c.LBA(); got != lba {
			t.Fatalf("FromLBA(%d).LBA() = %d", lba, got)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		c    CHS
		want bool
	}{
		{CHS{0, 0, 1}, true},
		{CHS{0, 0, 0}, false},
		{CHS{0, 0, 19}, false},
		{CHS{0, 2, 1}, false},
		{CHS{80, 0, 1}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%s.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}
}
