// Package ufs provides a host-file-backed fs.Disk_i, the convenience
// layer cmd/mkfs builds disk images through.
package ufs

import (
	"os"
	"sync"

	"sv39os/fs"
)

// FileDisk is a disk backed by a plain host file, the same role
// ahci_disk_t plays against a simulated AHCI device: Start seeks to
// the requested block and reads or writes BSIZE bytes through the
// file handle.
type FileDisk struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileDisk opens (creating if necessary) path as a block device of
// at least totalBlocks*fs.BSIZE bytes.
func NewFileDisk(path string, totalBlocks int) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(totalBlocks) * fs.BSIZE); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDisk{f: f}, nil
}

// OpenFileDisk opens an existing disk image for reading and writing.
func OpenFileDisk(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &FileDisk{f: f}, nil
}

func (d *FileDisk) seek(block int) {
	if _, err := d.f.Seek(int64(block)*fs.BSIZE, 0); err != nil {
		panic(err)
	}
}

// Start services one block device request, reading or writing each
// block in turn before closing req.AckCh, matching ahci_disk_t.Start's
// lock-seek-then-transfer discipline against a single host file.
func (d *FileDisk) Start(req *fs.Bdev_req_t) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch req.Cmd {
	case fs.BDEV_READ:
		req.Blks.Apply(func(b *fs.Bdev_block_t) {
			d.seek(b.Block)
			if _, err := d.f.Read(b.Data[:]); err != nil {
				panic(err)
			}
		})
	case fs.BDEV_WRITE:
		req.Blks.Apply(func(b *fs.Bdev_block_t) {
			d.seek(b.Block)
			if _, err := d.f.Write(b.Data[:]); err != nil {
				panic(err)
			}
		})
	}
	close(req.AckCh)
	return false
}

// Stats reports nothing interesting; a real disk might report seek
// counts or queue depth here.
func (d *FileDisk) Stats() string { return "" }

// Close syncs and closes the backing file.
func (d *FileDisk) Close() error {
	d.f.Sync()
	return d.f.Close()
}
