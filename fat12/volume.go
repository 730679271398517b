// Package fat12 reads files out of the root directory of a FAT12 volume, one
// sector at a time, through whatever sector source the caller provides.
package fat12

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"fdboot/hw"
)

const SectorSize = 512

var (
	ErrIO                = errors.New("fat12: i/o error")
	ErrNotFound          = errors.New("fat12: file not found")
	ErrReservedCluster   = errors.New("fat12: reserved cluster in chain")
	ErrChainLoop         = errors.New("fat12: cluster chain does not end")
	ErrClusterRange      = errors.New("fat12: cluster past end of volume")
	ErrUnsupportedLayout = errors.New("fat12: unsupported volume layout")
)

// SectorReader copies one sector into dst.
type SectorReader interface {
	ReadSectorInto(lba uint32, dst []byte) error
}

// Volume is a FAT12 volume with a fixed layout. Only the first FAT copy is
// read and clusters are one sector each.
type Volume struct {
	disk   SectorReader
	layout Layout
	out    hw.Printer
}

func NewVolume(disk SectorReader, layout Layout, out hw.Printer) *Volume {
	return &Volume{disk: disk, layout: layout, out: out}
}

func (v *Volume) Layout() Layout { return v.layout }

func (v *Volume) read(lba uint32, dst []byte) error {
	if err := v.disk.ReadSectorInto(lba, dst); err != nil {
		return fmt.Errorf("%w: sector %d: %w", ErrIO, lba, err)
	}
	return nil
}

// ReadBootSector reads and decodes sector 0.
func (v *Volume) ReadBootSector() (*BootSector, error) {
	sec := make([]byte, v.layout.SectorSize)
	if err := v.read(0, sec); err != nil {
		return nil, err
	}
	return ParseBootSector(sec)
}

// CheckBootSector verifies the on-disk parameters agree with the layout this
// reader was built for: 512-byte sectors, one sector per cluster, and the
// same region offsets.
func (v *Volume) CheckBootSector(bs *BootSector) error {
	if uint32(bs.BytesPerSector) != v.layout.SectorSize {
		return fmt.Errorf("%w: %d bytes per sector", ErrUnsupportedLayout, bs.BytesPerSector)
	}
	if bs.SectorsPerCluster != 1 {
		return fmt.Errorf("%w: %d sectors per cluster", ErrUnsupportedLayout, bs.SectorsPerCluster)
	}
	got, err := LayoutFromBootSector(bs)
	if err != nil {
		return err
	}
	if got.FATStart != v.layout.FATStart || got.RootStart != v.layout.RootStart || got.DataStart != v.layout.DataStart {
		return fmt.Errorf("%w: fat@%d root@%d data@%d, want fat@%d root@%d data@%d", ErrUnsupportedLayout,
			got.FATStart, got.RootStart, got.DataStart,
			v.layout.FATStart, v.layout.RootStart, v.layout.DataStart)
	}
	return nil
}

// LoadTable reads the first FAT copy.
func (v *Volume) LoadTable() (Table, error) {
	ss := v.layout.SectorSize
	t := make(Table, v.layout.FATSectors*ss)
	for i := uint32(0); i < v.layout.FATSectors; i++ {
		if err := v.read(v.layout.FATStart+i, t[i*ss:(i+1)*ss]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ClusterToLBA maps a data cluster to its sector.
func (v *Volume) ClusterToLBA(c uint16) uint32 {
	return v.layout.DataStart + uint32(c) - FirstCluster
}

// scanRoot calls fn for each live entry in the root directory until fn
// returns false or the end marker is reached.
func (v *Volume) scanRoot(fn func(raw []byte) (bool, error)) error {
	sec := make([]byte, v.layout.SectorSize)
	for s := uint32(0); s < v.layout.RootSectors; s++ {
		if err := v.read(v.layout.RootStart+s, sec); err != nil {
			return err
		}
		for off := 0; off+DirEntrySize <= len(sec); off += DirEntrySize {
			raw := sec[off : off+DirEntrySize]
			switch raw[0] {
			case EntryEnd:
				return nil
			case EntryDeleted:
				continue
			}
			more, err := fn(raw)
			if err != nil || !more {
				return err
			}
		}
	}
	return nil
}

// FindEntry returns the first root directory file whose padded name and
// extension equal name and ext exactly. Labels and directories never match.
func (v *Volume) FindEntry(name [8]byte, ext [3]byte) (*DirEntry, error) {
	var found *DirEntry
	err := v.scanRoot(func(raw []byte) (bool, error) {
		if raw[11]&(AttrVolumeLabel|AttrDirectory) != 0 {
			return true, nil
		}
		if !bytes.Equal(raw[0:8], name[:]) || !bytes.Equal(raw[8:11], ext[:]) {
			return true, nil
		}
		e, err := ParseDirEntry(raw)
		if err != nil {
			return false, err
		}
		found = e
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, string(name[:])+"."+string(ext[:]))
	}
	return found, nil
}

// Entries lists the live root directory entries, volume label included.
func (v *Volume) Entries() ([]DirEntry, error) {
	var out []DirEntry
	err := v.scanRoot(func(raw []byte) (bool, error) {
		e, err := ParseDirEntry(raw)
		if err != nil {
			return false, err
		}
		out = append(out, *e)
		return true, nil
	})
	return out, err
}

// LoadFile follows e's cluster chain and writes the file to dst at addr, one
// sector per cluster, stopping at the first value outside (1, 0xFF0). At
// most e.Size bytes are written; once they are, the rest of the chain is
// checked in the table without reading the disk. It returns the number of
// bytes written.
func (v *Volume) LoadFile(t Table, e *DirEntry, dst io.WriterAt, addr int64) (int64, error) {
	if e.Size == 0 {
		return 0, nil
	}
	sec := make([]byte, v.layout.SectorSize)
	remaining := int64(e.Size)
	var written int64

	c := e.Cluster()
	for n := uint32(0); ; n++ {
		if !ValidCluster(c) {
			if c <= 1 {
				return written, fmt.Errorf("%w: %#03x after %d clusters", ErrReservedCluster, c, n)
			}
			break
		}
		if uint32(c)-FirstCluster >= v.layout.Clusters {
			return written, fmt.Errorf("%w: %#03x after %d clusters", ErrClusterRange, c, n)
		}
		if n >= v.layout.Clusters {
			return written, fmt.Errorf("%w: more than %d clusters", ErrChainLoop, v.layout.Clusters)
		}
		if remaining > 0 {
			if err := v.read(v.ClusterToLBA(c), sec); err != nil {
				return written, fmt.Errorf("cluster %d: %w", c, err)
			}
			k := min(int64(len(sec)), remaining)
			if _, err := dst.WriteAt(sec[:k], addr+written); err != nil {
				return written, fmt.Errorf("fat12: copy cluster %d to %#x: %w", c, addr+written, err)
			}
			written += k
			remaining -= k
		}
		c = t.Next(c)
	}
	if remaining > 0 {
		v.out.Printf("fat12: %s: chain ended after %d of %d bytes", e.FileName(), written, e.Size)
	}
	return written, nil
}
