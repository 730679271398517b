package fat12

import (
	"fmt"
	"strings"
)

// Image builds a 1.44 MB FAT12 floppy in memory.
type Image struct {
	layout   Layout
	data     []byte
	table    Table
	next     uint16
	entries  int
	fragment bool
}

// Options controls image creation.
type Options struct {
	Label string
	OEM   string
	// Fragment leaves a free cluster between consecutive allocations so
	// chains are never contiguous.
	Fragment bool
}

const (
	floppyBytes = 1440 * 1024
	rootEntries = 224
)

// NewImage formats a blank 1.44 MB volume.
func NewImage(opts Options) (*Image, error) {
	im := &Image{
		layout:   Floppy144,
		data:     make([]byte, floppyBytes),
		table:    make(Table, Floppy144.FATSectors*SectorSize),
		next:     FirstCluster,
		fragment: opts.Fragment,
	}
	boot, err := buildBootSector(opts.Label, opts.OEM)
	if err != nil {
		return nil, err
	}
	copy(im.data, boot)

	im.table[0] = boot[21] // media descriptor
	im.table[1] = 0xFF
	im.table[2] = 0xFF
	if opts.Label != "" {
		lbl := padRight(strings.ToUpper(opts.Label), 11)
		e := DirEntry{Attr: AttrVolumeLabel}
		copy(e.Name[:], lbl[:8])
		copy(e.Ext[:], lbl[8:])
		if err := im.putEntry(&e); err != nil {
			return nil, err
		}
	}
	im.flushTable()
	return im, nil
}

func buildBootSector(label, oem string) ([]byte, error) {
	if label == "" {
		label = "NO NAME"
	}
	if oem == "" {
		oem = "FDBOOT"
	}
	bs := BootSector{
		Jump:              [3]byte{0xEB, 0x3C, 0x90},
		BytesPerSector:    SectorSize,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumFATs:           2,
		RootEntries:       rootEntries,
		TotalSectors16:    floppyBytes / SectorSize,
		Media:             0xF0,
		SectorsPerFAT:     uint16(Floppy144.FATSectors),
		SectorsPerTrack:   18,
		NumHeads:          2,
		ExtSignature:      0x29,
		VolumeID:          0x12345678,
		Signature:         BootSignature,
	}
	copy(bs.OEM[:], padRight(oem, 8))
	copy(bs.VolumeLabel[:], padRight(strings.ToUpper(label), 11))
	copy(bs.FSType[:], "FAT12   ")

	// prints a message and waits for a key, then reboots
	code := []byte{
		0x0E,             // push cs
		0x1F,             // pop ds
		0xBE, 0x77, 0x7C, // mov si, 0x7C77
		0xAC,       // lodsb
		0x22, 0xC0, // and al, al
		0x74, 0x0B, // jz halt
		0x56,       // push si
		0xB4, 0x0E, // mov ah, 0x0E
		0xBB, 0x07, 0x00, // mov bx, 0x0007
		0xCD, 0x10, // int 0x10
		0x5E,       // pop si
		0xEB, 0xF0, // jmp loop
		0x32, 0xE4, // xor ah, ah
		0xCD, 0x16, // int 0x16
		0xCD, 0x19, // int 0x19
		0xEB, 0xFE, // jmp $
	}
	copy(bs.BootCode[:], code)
	// the message sits at 0x7C77, sector offset 119
	copy(bs.BootCode[119-62:], "Non-system disk or disk error\r\nReplace and press any key when ready\r\n\x00")
	return bs.Bytes()
}

func (im *Image) putEntry(e *DirEntry) error {
	if im.entries >= rootEntries {
		return fmt.Errorf("fat12: root directory full (%d entries)", rootEntries)
	}
	b, err := e.Bytes()
	if err != nil {
		return err
	}
	off := int(im.layout.RootStart*SectorSize) + im.entries*DirEntrySize
	copy(im.data[off:off+DirEntrySize], b)
	im.entries++
	return nil
}

func (im *Image) alloc() (uint16, error) {
	c := im.next
	if uint32(c)-FirstCluster >= im.layout.Clusters {
		return 0, fmt.Errorf("fat12: volume full")
	}
	im.next++
	if im.fragment {
		im.next++
	}
	return c, nil
}

// AddFile stores data under an 8.3 name in the root directory and returns
// its first cluster (0 for an empty file).
func (im *Image) AddFile(name string, data []byte) (uint16, error) {
	n, x, err := SplitName(name)
	if err != nil {
		return 0, err
	}
	e := DirEntry{Name: n, Ext: x, Attr: AttrArchive, Size: uint32(len(data))}

	var first, prev uint16
	for off := 0; off < len(data); off += SectorSize {
		c, err := im.alloc()
		if err != nil {
			return 0, err
		}
		if first == 0 {
			first = c
		} else {
			im.table.Set(prev, c)
		}
		lba := im.layout.DataStart + uint32(c) - FirstCluster
		copy(im.data[lba*SectorSize:(lba+1)*SectorSize], data[off:min(off+SectorSize, len(data))])
		prev = c
	}
	if prev != 0 {
		im.table.Set(prev, EndOfChain)
	}
	e.ClusterLow = first
	if err := im.putEntry(&e); err != nil {
		return 0, err
	}
	im.flushTable()
	return first, nil
}

// flushTable writes the table to both FAT copies.
func (im *Image) flushTable() {
	for i := uint32(0); i < 2; i++ {
		off := (im.layout.FATStart + i*im.layout.FATSectors) * SectorSize
		copy(im.data[off:], im.table)
	}
}

// Table returns the allocation table as written.
func (im *Image) Table() Table { return im.table }

// Bytes is the raw image.
func (im *Image) Bytes() []byte { return im.data }

// MemDisk serves sectors out of a raw image.
type MemDisk []byte

func (d MemDisk) ReadSectorInto(lba uint32, dst []byte) error {
	off := int64(lba) * SectorSize
	if off+SectorSize > int64(len(d)) {
		return fmt.Errorf("fat12: sector %d beyond %d-byte image", lba, len(d))
	}
	copy(dst[:SectorSize], d[off:off+SectorSize])
	return nil
}
