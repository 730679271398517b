package fat12

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-restruct/restruct"
)

const DirEntrySize = 32

// First name byte markers.
const (
	EntryEnd     = 0x00
	EntryDeleted = 0xE5
)

// Attribute bits.
const (
	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchive     = 0x20
)

// DirEntry is one 32-byte short-name directory record.
type DirEntry struct {
	Name         [8]byte
	Ext          [3]byte
	Attr         uint8
	Reserved     uint8
	CreateTenths uint8
	CreateTime   uint16
	CreateDate   uint16
	AccessDate   uint16
	ClusterHigh  uint16
	ModTime      uint16
	ModDate      uint16
	ClusterLow   uint16
	Size         uint32
}

// ParseDirEntry decodes one record.
func ParseDirEntry(b []byte) (*DirEntry, error) {
	if len(b) < DirEntrySize {
		return nil, fmt.Errorf("fat12: directory entry is %d bytes", len(b))
	}
	var e DirEntry
	if err := restruct.Unpack(b[:DirEntrySize], binary.LittleEndian, &e); err != nil {
		return nil, fmt.Errorf("fat12: decode directory entry: %w", err)
	}
	return &e, nil
}

// Bytes encodes e.
func (e *DirEntry) Bytes() ([]byte, error) {
	b, err := restruct.Pack(binary.LittleEndian, e)
	if err != nil {
		return nil, fmt.Errorf("fat12: encode directory entry: %w", err)
	}
	return b, nil
}

// Cluster is the first cluster. The high word is always zero on FAT12.
func (e *DirEntry) Cluster() uint16 { return e.ClusterLow }

// FileName is the 8.3 name without padding, e.g. "KERNEL.BIN".
func (e *DirEntry) FileName() string {
	base := strings.TrimRight(string(e.Name[:]), " ")
	ext := strings.TrimRight(string(e.Ext[:]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Matches compares the padded name and extension byte for byte.
func (e *DirEntry) Matches(name [8]byte, ext [3]byte) bool {
	return e.Name == name && e.Ext == ext
}

func padRight(s string, n int) []byte {
	if len(s) > n {
		s = s[:n]
	}
	b := make([]byte, n)
	copy(b, s)
	for i := len(s); i < n; i++ {
		b[i] = ' '
	}
	return b
}

// SplitName turns "KERNEL.BIN" into its space padded 8+3 form. Case is kept
// as given.
func SplitName(s string) (name [8]byte, ext [3]byte, err error) {
	base, e, _ := strings.Cut(s, ".")
	if base == "" || len(base) > 8 || len(e) > 3 || strings.Contains(e, ".") {
		return name, ext, fmt.Errorf("fat12: %q is not an 8.3 name", s)
	}
	copy(name[:], padRight(base, 8))
	copy(ext[:], padRight(e, 3))
	return name, ext, nil
}
