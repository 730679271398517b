// Package chs converts between linear sector numbers and cylinder/head/sector
// triples on a 1.44 MB 3.5" floppy.
package chs

import "fmt"

const (
	SectorsPerTrack = 18
	Heads           = 2
	Cylinders       = 80

	// Capacity is the number of sectors on the media.
	Capacity = SectorsPerTrack * Heads * Cylinders
)

// CHS addresses one sector. Sector numbers start at 1.
type CHS struct {
	Cylinder uint16
	Head     uint8
	Sector   uint8
}

// FromLBA translates a 0-based logical block address.
func FromLBA(lba uint32) CHS {
	return CHS{
		Cylinder: uint16(lba / (SectorsPerTrack * Heads)),
		Head:     uint8((lba % (SectorsPerTrack * Heads)) / SectorsPerTrack),
		Sector:   uint8(lba%SectorsPerTrack) + 1,
	}
}

// LBA is the inverse of FromLBA.
func (c CHS) LBA() uint32 {
	return (uint32(c.Cylinder)*Heads+uint32(c.Head))*SectorsPerTrack + uint32(c.Sector) - 1
}

// Valid reports whether c lies on the media.
func (c CHS) Valid() bool {
	return c.Cylinder < Cylinders && c.Head < Heads && c.Sector >= 1 && c.Sector <= SectorsPerTrack
}

func (c CHS) String() string {
	return fmt.Sprintf("c%d h%d s%d", c.Cylinder, c.Head, c.Sector)
}
