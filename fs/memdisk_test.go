package fs

// memDisk is an in-memory Disk_i used by package tests so they never
// touch a real block device.
type memDisk struct {
	blocks map[int]*[BSIZE]uint8
}

func newMemDisk() *memDisk {
	return &memDisk{blocks: make(map[int]*[BSIZE]uint8)}
}

func (d *memDisk) Start(req *Bdev_req_t) bool {
	req.Blks.Apply(func(b *Bdev_block_t) {
		switch req.Cmd {
		case BDEV_READ:
			if got, ok := d.blocks[b.Block]; ok {
				*b.Data = *got
			}
		case BDEV_WRITE:
			cp := *b.Data
			d.blocks[b.Block] = &cp
		}
	})
	close(req.AckCh)
	return true
}

func (d *memDisk) Stats() string { return "memdisk" }

// boundedDisk is a memDisk that also enforces totalBlocks, the way a
// real disk backed by a fixed-size file does (ufs.FileDisk.seek past
// EOF surfaces as an io.EOF read error, which its Start turns into a
// panic) — unlike memDisk, it catches an EasyFS layout bug that
// addresses a block past the end of the image instead of silently
// tolerating it.
type boundedDisk struct {
	memDisk
	totalBlocks int
}

func newBoundedDisk(totalBlocks int) *boundedDisk {
	return &boundedDisk{memDisk: *newMemDisk(), totalBlocks: totalBlocks}
}

func (d *boundedDisk) Start(req *Bdev_req_t) bool {
	req.Blks.Apply(func(b *Bdev_block_t) {
		if b.Block < 0 || b.Block >= d.totalBlocks {
			panic("boundedDisk: block out of range")
		}
	})
	return d.memDisk.Start(req)
}
