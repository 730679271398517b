package fat12

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"fdboot/hw"
)

// ram is a flat io.WriterAt.
type ram []byte

func (r ram) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(r)) {
		return 0, fmt.Errorf("write %d bytes at %#x outside %d", len(p), off, len(r))
	}
	return copy(r[off:], p), nil
}

// countingDisk counts sector reads.
type countingDisk struct {
	MemDisk
	reads int
}

func (d *countingDisk) ReadSectorInto(lba uint32, dst []byte) error {
	d.reads++
	return d.MemDisk.ReadSectorInto(lba, dst)
}

func fill(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
	return b
}

func name83(t *testing.T, s string) ([8]byte, [3]byte) {
	t.Helper()
	n, x, err := SplitName(s)
	if err != nil {
		t.Fatal(err)
	}
	return n, x
}

func buildImage(t *testing.T, opts Options, files ...string) *Image {
	t.Helper()
	im, err := NewImage(opts)
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range files {
		name, size, _ := strings.Cut(f, ":")
		var n int
		fmt.Sscan(size, &n)
		if _, err := im.AddFile(name, fill(n, byte(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	return im
}

func TestLoadKernel(t *testing.T) {
	im := buildImage(t, Options{}, "KERNEL.BIN:1024")
	if im.Table().Next(2) != 3 || im.Table().Next(3) != EndOfChain {
		t.Fatalf("chain 2->%#03x, 3->%#03x", im.Table().Next(2), im.Table().Next(3))
	}
	vol := NewVolume(MemDisk(im.Bytes()), Floppy144, hw.Discard)

	bs, err := vol.ReadBootSector()
	if err != nil {
		t.Fatal(err)
	}
	if err := vol.CheckBootSector(bs); err != nil {
		t.Fatal(err)
	}
	table, err := vol.LoadTable()
	if err != nil {
		t.Fatal(err)
	}
	e, err := vol.FindEntry(name83(t, "KERNEL.BIN"))
	if err != nil {
		t.Fatal(err)
	}
	if e.Cluster() != 2 || e.Size != 1024 {
		t.Fatalf("entry cluster %d size %d", e.Cluster(), e.Size)
	}

	mem := make(ram, 0x2000)
	for i := range mem {
		mem[i] = 0xCC
	}
	n, err := vol.LoadFile(table, e, mem, 0x400)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1024 {
		t.Fatalf("loaded %d bytes", n)
	}
	if !bytes.Equal(mem[0x400:0x800], fill(1024, 1)) {
		t.Fatal("loaded bytes differ")
	}
	if mem[0x3FF] != 0xCC || mem[0x800] != 0xCC {
		t.Fatal("load wrote outside the file")
	}
}

func TestLoadClampsToSize(t *testing.T) {
	im := buildImage(t, Options{Fragment: true}, "A.TXT:700", "B.TXT:1")
	vol := NewVolume(MemDisk(im.Bytes()), Floppy144, hw.Discard)
	table, _ := vol.LoadTable()

	e, err := vol.FindEntry(name83(t, "A.TXT"))
	if err != nil {
		t.Fatal(err)
	}
	if e.Cluster() != 2 || table.Next(2) != 4 {
		t.Fatalf("fragmented chain starts %d->%d", e.Cluster(), table.Next(2))
	}
	mem := make(ram, 1024)
	n, err := vol.LoadFile(table, e, mem, 0)
	if err != nil || n != 700 {
		t.Fatalf("LoadFile = %d, %v", n, err)
	}
	if !bytes.Equal(mem[:700], fill(700, 1)) || mem[700] != 0 {
		t.Fatal("clamped copy wrong")
	}
}

func TestLoadFileChainErrors(t *testing.T) {
	im := buildImage(t, Options{}, "KERNEL.BIN:1024", "TINY.TXT:10")
	disk := &countingDisk{MemDisk: im.Bytes()}
	base := NewVolume(disk, Floppy144, hw.Discard)
	kernel, err := base.FindEntry(name83(t, "KERNEL.BIN"))
	if err != nil {
		t.Fatal(err)
	}
	tiny, err := base.FindEntry(name83(t, "TINY.TXT"))
	if err != nil {
		t.Fatal(err)
	}
	last := uint16(FirstCluster + Floppy144.Clusters)

	tests := []struct {
		name  string
		entry *DirEntry
		edit  func(Table, *DirEntry)
		want  error
		bytes int64
		reads int
	}{
		{"free cluster in chain", kernel, func(tb Table, _ *DirEntry) { tb.Set(3, 0) }, ErrReservedCluster, 1024, 2},
		{"cluster one", kernel, func(tb Table, _ *DirEntry) { tb.Set(2, 1) }, ErrReservedCluster, 512, 1},
		{"starts at zero", kernel, func(_ Table, e *DirEntry) { e.ClusterLow = 0 }, ErrReservedCluster, 0, 0},
		{"loop", kernel, func(tb Table, _ *DirEntry) { tb.Set(3, 2) }, ErrChainLoop, 1024, 2},
		{"single sector points at itself", tiny, func(tb Table, e *DirEntry) { tb.Set(e.Cluster(), e.Cluster()) }, ErrChainLoop, 10, 1},
		{"next past last cluster", kernel, func(tb Table, _ *DirEntry) { tb.Set(2, 0xF00) }, ErrClusterRange, 512, 1},
		{"next one past last cluster", kernel, func(tb Table, _ *DirEntry) { tb.Set(2, last) }, ErrClusterRange, 512, 1},
		{"starts past last cluster", kernel, func(_ Table, e *DirEntry) { e.ClusterLow = last }, ErrClusterRange, 0, 0},
		{"bad cluster ends", kernel, func(tb Table, _ *DirEntry) { tb.Set(3, BadCluster) }, nil, 1024, 2},
		{"reserved value ends", kernel, func(tb Table, _ *DirEntry) { tb.Set(3, EndOfChainLo) }, nil, 1024, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := base.LoadTable()
			if err != nil {
				t.Fatal(err)
			}
			entry := *tt.entry
			tt.edit(table, &entry)
			before := disk.reads
			n, err := base.LoadFile(table, &entry, make(ram, 4096), 0)
			if tt.want == nil && err != nil {
				t.Fatalf("LoadFile = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("LoadFile = %v, want %v", err, tt.want)
			}
			if n != tt.bytes {
				t.Fatalf("wrote %d bytes, want %d", n, tt.bytes)
			}
			if got := disk.reads - before; got != tt.reads {
				t.Fatalf("%d sector reads, want %d", got, tt.reads)
			}
		})
	}
}

func TestShortChainWarns(t *testing.T) {
	im := buildImage(t, Options{}, "KERNEL.BIN:1024")
	var out bytes.Buffer
	vol := NewVolume(MemDisk(im.Bytes()), Floppy144, hw.WriterPrinter{W: &out})
	table, _ := vol.LoadTable()
	e, _ := vol.FindEntry(name83(t, "KERNEL.BIN"))
	e.Size = 2048
	n, err := vol.LoadFile(table, e, make(ram, 4096), 0)
	if err != nil || n != 1024 {
		t.Fatalf("LoadFile = %d, %v", n, err)
	}
	if !strings.Contains(out.String(), "1024 of 2048") {
		t.Fatalf("no warning: %q", out.String())
	}
}

func TestEmptyFileReadsNothing(t *testing.T) {
	im := buildImage(t, Options{}, "EMPTY.DAT:0")
	disk := &countingDisk{MemDisk: im.Bytes()}
	vol := NewVolume(disk, Floppy144, hw.Discard)
	table, _ := vol.LoadTable()
	e, err := vol.FindEntry(name83(t, "EMPTY.DAT"))
	if err != nil {
		t.Fatal(err)
	}
	before := disk.reads
	n, err := vol.LoadFile(table, e, make(ram, 0), 0)
	if n != 0 || err != nil || disk.reads != before {
		t.Fatalf("LoadFile = %d, %v after %d reads", n, err, disk.reads-before)
	}
}

func TestFindEntry(t *testing.T) {
	im := buildImage(t, Options{Label: "BOOTDISK"}, "README.TXT:10", "KERNEL.BIN:600", "NOEXT:3")
	vol := NewVolume(MemDisk(im.Bytes()), Floppy144, hw.Discard)

	tests := []struct {
		name string
		n    [8]byte
		x    [3]byte
		ok   bool
	}{
		{"kernel", [8]byte{'K', 'E', 'R', 'N', 'E', 'L', ' ', ' '}, [3]byte{'B', 'I', 'N'}, true},
		{"no extension", [8]byte{'N', 'O', 'E', 'X', 'T', ' ', ' ', ' '}, [3]byte{' ', ' ', ' '}, true},
		{"lower case", [8]byte{'k', 'e', 'r', 'n', 'e', 'l', ' ', ' '}, [3]byte{'b', 'i', 'n'}, false},
		{"prefix only", [8]byte{'K', 'E', 'R', 'N', ' ', ' ', ' ', ' '}, [3]byte{'B', 'I', 'N'}, false},
		{"volume label", [8]byte{'B', 'O', 'O', 'T', 'D', 'I', 'S', 'K'}, [3]byte{' ', ' ', ' '}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := vol.FindEntry(tt.n, tt.x)
			if tt.ok {
				if err != nil {
					t.Fatal(err)
				}
				if !e.Matches(tt.n, tt.x) {
					t.Fatalf("found %q", e.FileName())
				}
				return
			}
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("FindEntry = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestFindEntrySkipsDirectories(t *testing.T) {
	im := buildImage(t, Options{}, "SYS.BIN:10", "SYS.BIN:700")
	raw := im.Bytes()
	raw[Floppy144.RootStart*SectorSize+11] = AttrDirectory
	vol := NewVolume(MemDisk(raw), Floppy144, hw.Discard)

	e, err := vol.FindEntry(name83(t, "SYS.BIN"))
	if err != nil {
		t.Fatal(err)
	}
	if e.Attr&AttrDirectory != 0 || e.Size != 700 {
		t.Fatalf("found attr %#02x size %d, want the 700-byte file", e.Attr, e.Size)
	}

	raw[Floppy144.RootStart*SectorSize+DirEntrySize+11] = AttrDirectory | AttrArchive
	if _, err := vol.FindEntry(name83(t, "SYS.BIN")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindEntry = %v, want ErrNotFound", err)
	}
}

func TestRootMarkers(t *testing.T) {
	im := buildImage(t, Options{}, "A.BIN:1", "B.BIN:1", "C.BIN:1")
	root := int(Floppy144.RootStart) * SectorSize

	t.Run("deleted entries are skipped", func(t *testing.T) {
		raw := append([]byte(nil), im.Bytes()...)
		raw[root] = EntryDeleted
		vol := NewVolume(MemDisk(raw), Floppy144, hw.Discard)
		if _, err := vol.FindEntry(name83(t, "A.BIN")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("deleted entry found: %v", err)
		}
		if _, err := vol.FindEntry(name83(t, "C.BIN")); err != nil {
			t.Fatalf("entry after a deleted one: %v", err)
		}
	})

	t.Run("end marker stops the scan", func(t *testing.T) {
		raw := append([]byte(nil), im.Bytes()...)
		raw[root+DirEntrySize] = EntryEnd
		vol := NewVolume(MemDisk(raw), Floppy144, hw.Discard)
		if _, err := vol.FindEntry(name83(t, "C.BIN")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("entry past the end marker found: %v", err)
		}
		entries, err := vol.Entries()
		if err != nil || len(entries) != 1 {
			t.Fatalf("Entries = %d, %v", len(entries), err)
		}
	})
}

func TestFindEntryLastRootSector(t *testing.T) {
	im, err := NewImage(Options{})
	if err != nil {
		t.Fatal(err)
	}
	// fill the root directory so the last file lands in its final sector
	for i := 0; i < rootEntries; i++ {
		if _, err := im.AddFile(fmt.Sprintf("F%d.DAT", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := im.AddFile("ONEMORE.DAT", nil); err == nil {
		t.Fatal("root directory accepted a 225th entry")
	}
	vol := NewVolume(MemDisk(im.Bytes()), Floppy144, hw.Discard)
	if _, err := vol.FindEntry(name83(t, fmt.Sprintf("F%d.DAT", rootEntries-1))); err != nil {
		t.Fatal(err)
	}
	if _, err := vol.FindEntry(name83(t, "ONEMORE.DAT")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindEntry = %v", err)
	}
}

func TestReadErrorsWrapIO(t *testing.T) {
	vol := NewVolume(MemDisk(make([]byte, 10*SectorSize)), Floppy144, hw.Discard)
	if _, err := vol.FindEntry(name83(t, "KERNEL.BIN")); !errors.Is(err, ErrIO) {
		t.Fatalf("FindEntry on a short disk = %v, want ErrIO", err)
	}
}

func TestCheckBootSector(t *testing.T) {
	im := buildImage(t, Options{})
	vol := NewVolume(MemDisk(im.Bytes()), Floppy144, hw.Discard)

	tests := []struct {
		name string
		edit func(*BootSector)
		ok   bool
	}{
		{"as built", func(*BootSector) {}, true},
		{"two sectors per cluster", func(bs *BootSector) { bs.SectorsPerCluster = 2 }, false},
		{"1024-byte sectors", func(bs *BootSector) { bs.BytesPerSector = 1024 }, false},
		{"extra reserved sector", func(bs *BootSector) { bs.ReservedSectors = 2 }, false},
		{"more root entries", func(bs *BootSector) { bs.RootEntries = 512 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := vol.ReadBootSector()
			if err != nil {
				t.Fatal(err)
			}
			tt.edit(bs)
			err = vol.CheckBootSector(bs)
			if tt.ok && err != nil {
				t.Fatal(err)
			}
			if !tt.ok && !errors.Is(err, ErrUnsupportedLayout) {
				t.Fatalf("CheckBootSector = %v, want ErrUnsupportedLayout", err)
			}
		})
	}
}

func TestClusterToLBA(t *testing.T) {
	vol := NewVolume(MemDisk(nil), Floppy144, hw.Discard)
	for c, want := range map[uint16]uint32{2: 33, 3: 34, 2848: 2879} {
		if got := vol.ClusterToLBA(c); got != want {
			t.Errorf("ClusterToLBA(%d) = %d, want %d", c, got, want)
		}
	}
}
