package fs

import "testing"

func TestBlockCacheReadWrite(t *testing.T) {
	disk := newMemDisk()
	bc := NewBlockCache(disk)

	b := bc.Get(5)
	b.Data[0] = 42
	b.Dirty = true
	bc.Put(b)

	bc.SyncAll()
	if _, ok := disk.blocks[5]; !ok {
		t.Fatal("expected block 5 to be flushed to disk")
	}
	if disk.blocks[5][0] != 42 {
		t.Fatalf("flushed byte = %d, want 42", disk.blocks[5][0])
	}
}

func TestBlockCacheEvictsOldest(t *testing.T) {
	disk := newMemDisk()
	bc := NewBlockCache(disk)
	for i := 0; i < NCache; i++ {
		b := bc.Get(i)
		bc.Put(b)
	}
	if bc.Len() != NCache {
		t.Fatalf("len = %d, want %d", bc.Len(), NCache)
	}
	b := bc.Get(NCache) // should evict block 0
	bc.Put(b)
	if bc.Len() != NCache {
		t.Fatalf("len after eviction = %d, want %d", bc.Len(), NCache)
	}
	if _, ok := bc.index.Get(0); ok {
		t.Fatal("expected block 0 to have been evicted")
	}
}

func TestBlockCachePanicsOnOverRelease(t *testing.T) {
	disk := newMemDisk()
	bc := NewBlockCache(disk)
	b := bc.Get(0)
	bc.Put(b)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on over-release")
		}
	}()
	bc.Put(b)
}

func TestBitmapAllocDealloc(t *testing.T) {
	disk := newMemDisk()
	bc := NewBlockCache(disk)
	bm := NewBitmap(1, 1)

	a := bm.Alloc(bc)
	b := bm.Alloc(bc)
	if a != 0 || b != 1 {
		t.Fatalf("alloc sequence = %d,%d, want 0,1", a, b)
	}
	bm.Dealloc(bc, a)
	c := bm.Alloc(bc)
	if c != a {
		t.Fatalf("expected bit %d to be recycled, got %d", a, c)
	}
}

func TestBitmapDoubleFreePanics(t *testing.T) {
	disk := newMemDisk()
	bc := NewBlockCache(disk)
	bm := NewBitmap(1, 1)
	bit := bm.Alloc(bc)
	bm.Dealloc(bc, bit)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	bm.Dealloc(bc, bit)
}
