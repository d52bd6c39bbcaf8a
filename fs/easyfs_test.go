package fs

import "testing"

func TestCreateThenOpen(t *testing.T) {
	disk := newMemDisk()
	efs := Create(disk, 64, 1)
	if efs.Super.Magic() != EasyFSMagic {
		t.Fatalf("magic = %x, want %x", efs.Super.Magic(), EasyFSMagic)
	}

	reopened, ok := Open(disk)
	if !ok {
		t.Fatal("expected reopen to succeed")
	}
	if reopened.Super.TotalBlocks() != efs.Super.TotalBlocks() {
		t.Fatalf("total blocks mismatch after reopen")
	}
}

// TestCreateLayoutFitsOnBoundedDisk exercises the real totalBlocks /
// inodeCountHint pairs kernel.Init and cmd/mkfs pass to fs.Create
// against a disk that panics on any out-of-range block access, instead
// of a memDisk's unbounded map that would silently tolerate a
// miscomputed data area starting past the end of the image.
func TestCreateLayoutFitsOnBoundedDisk(t *testing.T) {
	cases := []struct {
		totalBlocks, inodeCountHint int
	}{
		{8192, 256},   // kernel.Init's fresh-image format
		{40000, 4096}, // cmd/mkfs's default
		{64, 1},       // smallest sane test-fixture disk
	}
	for _, c := range cases {
		disk := newBoundedDisk(c.totalBlocks)
		efs := Create(disk, c.totalBlocks, c.inodeCountHint)
		if got := efs.Super.FirstDataAreaBlock() + efs.Super.DataAreaBlocks(); got > c.totalBlocks {
			t.Fatalf("totalBlocks=%d inodeCountHint=%d: data area ends at block %d, past the %d-block disk",
				c.totalBlocks, c.inodeCountHint, got, c.totalBlocks)
		}

		id := efs.AllocInode()
		if id == 0 {
			t.Fatal("inode 0 is reserved for root, allocator should skip it")
		}
		blk := efs.AllocData()
		if blk < 0 || blk >= c.totalBlocks {
			t.Fatalf("allocated data block %d out of range for a %d-block disk", blk, c.totalBlocks)
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	disk := newMemDisk()
	disk.blocks[0] = &[BSIZE]uint8{}
	if _, ok := Open(disk); ok {
		t.Fatal("expected open to reject a zeroed superblock")
	}
}

func TestAllocDeallocInodeAndData(t *testing.T) {
	disk := newMemDisk()
	efs := Create(disk, 64, 1)

	id := efs.AllocInode()
	if id == 0 {
		t.Fatal("inode 0 is reserved for root, allocator should skip it")
	}
	efs.DeallocInode(id)

	blk := efs.AllocData()
	if blk < 0 {
		t.Fatal("expected data block allocation to succeed")
	}
	efs.DeallocData(blk)
}

func TestDiskInodeGrowAndShrink(t *testing.T) {
	disk := newMemDisk()
	efs := Create(disk, 64, 1)

	id := efs.AllocInode()
	efs.ModifyDiskInode(id, func(di *DiskInode) { di.Type = TypeFile })

	data := make([]byte, 3*BSIZE+17)
	for i := range data {
		data[i] = byte(i)
	}

	efs.ModifyDiskInode(id, func(di *DiskInode) {
		need := di.BlocksNumNeeded(uint32(len(data)))
		blocks := make([]uint32, need)
		for i := range blocks {
			b := efs.AllocData()
			if b < 0 {
				t.Fatal("ran out of data blocks")
			}
			blocks[i] = uint32(b)
		}
		di.IncreaseSize(uint32(len(data)), blocks, efs.Cache)
		di.WriteAt(efs.Cache, 0, data)
	})

	readBack := make([]byte, len(data))
	efs.ReadDiskInode(id, func(di *DiskInode) {
		got := di.ReadAt(efs.Cache, 0, readBack)
		if got != len(data) {
			t.Fatalf("read %d bytes, want %d", got, len(data))
		}
	})
	for i := range data {
		if readBack[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, readBack[i], data[i])
		}
	}

	efs.ModifyDiskInode(id, func(di *DiskInode) {
		freed := di.ClearSize(efs.Cache)
		if len(freed) == 0 {
			t.Fatal("expected ClearSize to report freed blocks")
		}
		for _, b := range freed {
			efs.DeallocData(int(b))
		}
	})
}
