package fat12

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// BootSector is sector 0 of the volume: the BIOS Parameter Block, the
// extended BPB and the boot code.
type BootSector struct {
	Jump              [3]byte
	OEM               [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	DriveNumber  uint8
	Flags        uint8
	ExtSignature uint8
	VolumeID     uint32
	VolumeLabel  [11]byte
	FSType       [8]byte
	BootCode     [448]byte
	Signature    uint16
}

const BootSignature = 0xAA55

// ParseBootSector decodes a 512-byte boot sector.
func ParseBootSector(b []byte) (*BootSector, error) {
	if len(b) < SectorSize {
		return nil, fmt.Errorf("fat12: boot sector is %d bytes", len(b))
	}
	var bs BootSector
	if err := restruct.Unpack(b[:SectorSize], binary.LittleEndian, &bs); err != nil {
		return nil, fmt.Errorf("fat12: decode boot sector: %w", err)
	}
	return &bs, nil
}

// Bytes encodes bs back into a 512-byte sector.
func (bs *BootSector) Bytes() ([]byte, error) {
	b, err := restruct.Pack(binary.LittleEndian, bs)
	if err != nil {
		return nil, fmt.Errorf("fat12: encode boot sector: %w", err)
	}
	return b, nil
}

// TotalSectors picks the 16 or 32-bit count.
func (bs *BootSector) TotalSectors() uint32 {
	if bs.TotalSectors16 != 0 {
		return uint32(bs.TotalSectors16)
	}
	return bs.TotalSectors32
}

// Layout is where the regions of a volume start, in sectors.
type Layout struct {
	SectorSize  uint32
	FATStart    uint32
	FATSectors  uint32
	RootStart   uint32
	RootSectors uint32
	DataStart   uint32
	Clusters    uint32
}

// Floppy144 is the layout of a standard 1.44 MB disk: one reserved sector,
// two 9-sector FATs, 224 root entries.
var Floppy144 = Layout{
	SectorSize:  SectorSize,
	FATStart:    1,
	FATSectors:  9,
	RootStart:   19,
	RootSectors: 14,
	DataStart:   33,
	Clusters:    2880 - 33,
}

// LayoutFromBootSector computes the layout a BPB describes, assuming one
// sector per cluster.
func LayoutFromBootSector(bs *BootSector) (Layout, error) {
	if bs.BytesPerSector == 0 || bs.SectorsPerCluster == 0 {
		return Layout{}, fmt.Errorf("%w: zero sector or cluster size", ErrUnsupportedLayout)
	}
	bps := uint32(bs.BytesPerSector)
	root := (uint32(bs.RootEntries)*DirEntrySize + bps - 1) / bps
	l := Layout{
		SectorSize:  bps,
		FATStart:    uint32(bs.ReservedSectors),
		FATSectors:  uint32(bs.SectorsPerFAT),
		RootStart:   uint32(bs.ReservedSectors) + uint32(bs.NumFATs)*uint32(bs.SectorsPerFAT),
		RootSectors: root,
	}
	l.DataStart = l.RootStart + l.RootSectors
	total := bs.TotalSectors()
	if total <= l.DataStart {
		return Layout{}, fmt.Errorf("%w: %d sectors leave no data region", ErrUnsupportedLayout, total)
	}
	l.Clusters = (total - l.DataStart) / uint32(bs.SectorsPerCluster)
	return l, nil
}
