// Package diag prints development dumps of on-disk structures and probes the
// CMOS drive-type byte.
package diag

import (
	"fmt"
	"strings"

	"fdboot/fat12"
	"fdboot/hw"
)

const lineWidth = 79

func trimmed(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// BootSector prints every BPB field followed by the region layout it implies.
func BootSector(p hw.Printer, bs *fat12.BootSector) {
	barHeavy := strings.Repeat("═", lineWidth)
	barLight := strings.Repeat("─", lineWidth)

	lines := []string{
		barHeavy,
		" BOOT SECTOR",
		barLight,
		fmt.Sprintf(" OEM: %-8s   Label: %-11s   FS type: %s", trimmed(bs.OEM[:]), trimmed(bs.VolumeLabel[:]), trimmed(bs.FSType[:])),
		fmt.Sprintf(" Bytes/Sector: %-4d    Sectors/Cluster: %-3d   Reserved: %d", bs.BytesPerSector, bs.SectorsPerCluster, bs.ReservedSectors),
		fmt.Sprintf(" FATs: %-2d  Sectors/FAT: %-4d  Root entries: %d", bs.NumFATs, bs.SectorsPerFAT, bs.RootEntries),
		fmt.Sprintf(" Total sectors: %d (short %d, long %d)  Media: %#02x", bs.TotalSectors(), bs.TotalSectors16, bs.TotalSectors32, bs.Media),
		fmt.Sprintf(" Sectors/Track: %-2d  Heads: %-2d  Hidden: %d", bs.SectorsPerTrack, bs.NumHeads, bs.HiddenSectors),
		fmt.Sprintf(" Drive: %#02x  Flags: %#02x  Signature: %#02x  Volume ID: %08X", bs.DriveNumber, bs.Flags, bs.ExtSignature, bs.VolumeID),
		fmt.Sprintf(" Boot signature: %#04x", bs.Signature),
	}

	if l, err := fat12.LayoutFromBootSector(bs); err != nil {
		lines = append(lines, barLight, " LAYOUT: "+err.Error())
	} else {
		formatRange := func(start, n uint32) string {
			if n <= 1 {
				return fmt.Sprintf("[%06d]", start)
			}
			return fmt.Sprintf("[%06d … %06d]", start, start+n-1)
		}
		lines = append(lines,
			barLight,
			" LAYOUT (absolute sector ranges)",
			barLight,
			fmt.Sprintf(" Boot  : %s", formatRange(0, 1)),
			fmt.Sprintf(" FAT #1: %s    Root  : %s", formatRange(l.FATStart, l.FATSectors), formatRange(l.RootStart, l.RootSectors)),
			fmt.Sprintf(" Data  : %s    Clusters: %d", formatRange(l.DataStart, l.Clusters*uint32(bs.SectorsPerCluster)), l.Clusters),
		)
	}
	lines = append(lines, barHeavy)

	for _, line := range lines {
		p.Printf("%s", line)
	}
}

func attrString(a uint8) string {
	flags := []struct {
		bit uint8
		c   byte
	}{
		{fat12.AttrReadOnly, 'R'},
		{fat12.AttrHidden, 'H'},
		{fat12.AttrSystem, 'S'},
		{fat12.AttrVolumeLabel, 'V'},
		{fat12.AttrDirectory, 'D'},
		{fat12.AttrArchive, 'A'},
	}
	b := []byte("------")
	for i, f := range flags {
		if a&f.bit != 0 {
			b[i] = f.c
		}
	}
	return string(b)
}

// Entries prints a root directory listing.
func Entries(p hw.Printer, entries []fat12.DirEntry) {
	p.Printf(" %-12s %-6s %7s %10s", "NAME", "ATTR", "CLUSTER", "SIZE")
	var total uint64
	for i := range entries {
		e := &entries[i]
		name := e.FileName()
		if e.Attr&fat12.AttrVolumeLabel != 0 {
			name = trimmed(append(e.Name[:], e.Ext[:]...))
		}
		p.Printf(" %-12s %-6s %7d %10d", name, attrString(e.Attr), e.Cluster(), e.Size)
		total += uint64(e.Size)
	}
	p.Printf(" %d entries, %d bytes", len(entries), total)
}

var driveTypes = [8]string{
	"none",
	"360kB 5.25\"",
	"1.2MB 5.25\"",
	"720kB 3.5\"",
	"1.44MB 3.5\"",
	"2.88MB 3.5\"",
	"unknown type",
	"unknown type",
}

const (
	cmosIndex       = 0x70
	cmosData        = 0x71
	cmosFloppyTypes = 0x10
)

// DriveTypes reads the drive types the firmware recorded in CMOS.
func DriveTypes(ports hw.Ports) (drive0, drive1 string) {
	ports.Out8(cmosIndex, cmosFloppyTypes)
	v := ports.In8(cmosData)
	return driveTypes[(v>>4)&7], driveTypes[v&7]
}
