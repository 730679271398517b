package fat12

// Cluster value ranges.
const (
	FirstCluster = 2
	EndOfChainLo = 0xFF0 // values from here up end a chain
	BadCluster   = 0xFF7
	EndOfChain   = 0xFFF
)

// ValidCluster reports whether c points at a data cluster.
func ValidCluster(c uint16) bool {
	return c > 1 && c < EndOfChainLo
}

// Table is the raw allocation table, two 12-bit entries per three bytes.
type Table []byte

// Len is the number of entries the table holds, reserved ones included.
func (t Table) Len() int {
	return len(t) * 2 / 3
}

// Next returns the entry for cluster. Lookups past the table end read as
// end of chain.
func (t Table) Next(cluster uint16) uint16 {
	pos := 3 * int(cluster) / 2
	if pos+1 >= len(t) {
		return EndOfChain
	}
	if cluster&1 == 0 {
		return uint16(t[pos]) | uint16(t[pos+1]&0x0F)<<8
	}
	return uint16(t[pos]&0xF0)>>4 | uint16(t[pos+1])<<4
}

// Set stores a 12-bit value for cluster, leaving the neighbouring entry's
// nibble alone.
func (t Table) Set(cluster, v uint16) {
	pos := 3 * int(cluster) / 2
	if pos+1 >= len(t) {
		return
	}
	v &= 0x0FFF
	if cluster&1 == 0 {
		t[pos] = byte(v)
		t[pos+1] = t[pos+1]&0xF0 | byte(v>>8)
		return
	}
	t[pos] = t[pos]&0x0F | byte(v<<4)
	t[pos+1] = byte(v >> 4)
}
