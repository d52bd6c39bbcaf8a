package vfs

import (
	"sv39os/defs"
	"sv39os/fs"
	"testing"
)

// memDisk is a small in-memory fs.Disk_i, duplicated here (rather than
// imported) since package fs's own test-only disk is unexported.
type memDisk struct {
	blocks map[int]*[fs.BSIZE]uint8
}

func newMemDisk() *memDisk { return &memDisk{blocks: make(map[int]*[fs.BSIZE]uint8)} }

func (d *memDisk) Start(req *fs.Bdev_req_t) bool {
	req.Blks.Apply(func(b *fs.Bdev_block_t) {
		switch req.Cmd {
		case fs.BDEV_READ:
			if got, ok := d.blocks[b.Block]; ok {
				*b.Data = *got
			}
		case fs.BDEV_WRITE:
			cp := *b.Data
			d.blocks[b.Block] = &cp
		}
	})
	close(req.AckCh)
	return true
}

func (d *memDisk) Stats() string { return "memdisk" }

func newTestRoot(t *testing.T) *Inode {
	t.Helper()
	efs := fs.Create(newMemDisk(), 128, 1)
	return Root(efs)
}

func TestCreateFindLs(t *testing.T) {
	root := newTestRoot(t)

	if _, err := root.Find("missing"); err != defs.ENOENT {
		t.Fatalf("Find(missing) err = %v, want ENOENT", err)
	}

	f, err := root.Create("hello")
	if err != 0 {
		t.Fatalf("Create err = %v", err)
	}
	if !f.IsFile() {
		t.Fatal("expected created inode to be a file")
	}

	if _, err := root.Create("hello"); err != defs.EEXIST {
		t.Fatalf("Create duplicate err = %v, want EEXIST", err)
	}

	names := root.Ls()
	if len(names) != 1 || names[0] != "hello" {
		t.Fatalf("Ls = %v, want [hello]", names)
	}

	found, err := root.Find("hello")
	if err != 0 || found.InodeID != f.InodeID {
		t.Fatalf("Find mismatch: %v, %v", found, err)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	root := newTestRoot(t)
	f, _ := root.Create("data.bin")

	payload := make([]byte, 2*fs.BSIZE+50)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	if got := f.WriteAt(0, payload); got != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", got, len(payload))
	}

	readBack := make([]byte, len(payload))
	if got := f.ReadAt(0, readBack); got != len(payload) {
		t.Fatalf("read %d bytes, want %d", got, len(payload))
	}
	for i := range payload {
		if readBack[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, readBack[i], payload[i])
		}
	}
}

func TestLinkAndUnlink(t *testing.T) {
	root := newTestRoot(t)
	f, _ := root.Create("a")
	f.WriteAt(0, []byte("xyz"))

	if err := root.Link("a", "b"); err != 0 {
		t.Fatalf("Link err = %v", err)
	}
	if f.Nlink() != 2 {
		t.Fatalf("Nlink = %d, want 2", f.Nlink())
	}

	via, err := root.Find("b")
	if err != 0 || via.InodeID != f.InodeID {
		t.Fatalf("Find(b) = %v, %v, want inode %d", via, err, f.InodeID)
	}

	if err := root.Unlink("a"); err != 0 {
		t.Fatalf("Unlink err = %v", err)
	}
	if f.Nlink() != 1 {
		t.Fatalf("Nlink after unlink = %d, want 1", f.Nlink())
	}
	if _, err := root.Find("a"); err != defs.ENOENT {
		t.Fatalf("Find(a) after unlink err = %v, want ENOENT", err)
	}

	if err := root.Unlink("b"); err != 0 {
		t.Fatalf("final Unlink err = %v", err)
	}
	if _, err := root.Find("b"); err != defs.ENOENT {
		t.Fatal("expected b to be gone once its last link was removed")
	}
}

func TestLinkSameNameShortCircuits(t *testing.T) {
	root := newTestRoot(t)
	// "ghost" was never created; link(old==new) must still reject via the
	// equality check before ever looking ghost up.
	if err := root.Link("ghost", "ghost"); err != defs.EEXIST {
		t.Fatalf("Link(x,x) err = %v, want EEXIST even though x does not exist", err)
	}
}

func TestClearFreesData(t *testing.T) {
	root := newTestRoot(t)
	f, _ := root.Create("big")
	f.WriteAt(0, make([]byte, 3*fs.BSIZE))
	f.Clear()
	var size uint32
	root.fs.ReadDiskInode(f.InodeID, func(di *fs.DiskInode) { size = di.Size })
	if size != 0 {
		t.Fatalf("size after Clear = %d, want 0", size)
	}
}
