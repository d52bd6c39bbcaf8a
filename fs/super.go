package fs

import "sv39os/util"

// EasyFSMagic identifies a valid EasyFS superblock.
const EasyFSMagic = 0x3b800001

// Superblock_t is the on-disk layout of block 0: a magic number followed
// by the block counts of each of the four regions that follow it
// (inode bitmap, inode area, data bitmap, data area).
type Superblock_t struct {
	Data *[BSIZE]uint8
}

func fieldr(d *[BSIZE]uint8, i int) int {
	return util.Readn(d[:], 4, i*4)
}

func fieldw(d *[BSIZE]uint8, i int, v int) {
	util.Writen(d[:], 4, i*4, v)
}

func (sb *Superblock_t) Magic() int           { return fieldr(sb.Data, 0) }
func (sb *Superblock_t) TotalBlocks() int      { return fieldr(sb.Data, 1) }
func (sb *Superblock_t) InodeBitmapBlocks() int { return fieldr(sb.Data, 2) }
func (sb *Superblock_t) InodeAreaBlocks() int   { return fieldr(sb.Data, 3) }
func (sb *Superblock_t) DataBitmapBlocks() int  { return fieldr(sb.Data, 4) }
func (sb *Superblock_t) DataAreaBlocks() int    { return fieldr(sb.Data, 5) }

func (sb *Superblock_t) SetMagic(v int)            { fieldw(sb.Data, 0, v) }
func (sb *Superblock_t) SetTotalBlocks(v int)       { fieldw(sb.Data, 1, v) }
func (sb *Superblock_t) SetInodeBitmapBlocks(v int) { fieldw(sb.Data, 2, v) }
func (sb *Superblock_t) SetInodeAreaBlocks(v int)   { fieldw(sb.Data, 3, v) }
func (sb *Superblock_t) SetDataBitmapBlocks(v int)  { fieldw(sb.Data, 4, v) }
func (sb *Superblock_t) SetDataAreaBlocks(v int)    { fieldw(sb.Data, 5, v) }

// Valid reports whether the superblock carries the EasyFS magic number.
func (sb *Superblock_t) Valid() bool {
	return sb.Magic() == EasyFSMagic
}

// FirstInodeBitmapBlock etc. give the starting block number of each
// region, counting block 0 as the superblock itself.
func (sb *Superblock_t) FirstInodeBitmapBlock() int { return 1 }
func (sb *Superblock_t) FirstInodeAreaBlock() int {
	return sb.FirstInodeBitmapBlock() + sb.InodeBitmapBlocks()
}
func (sb *Superblock_t) FirstDataBitmapBlock() int {
	return sb.FirstInodeAreaBlock() + sb.InodeAreaBlocks()
}
func (sb *Superblock_t) FirstDataAreaBlock() int {
	return sb.FirstDataBitmapBlock() + sb.DataBitmapBlocks()
}

// Initialize fills in a fresh superblock for a disk of totalBlocks
// blocks, given how many blocks the inode area should occupy (the data
// area absorbs everything left over). inodeBitmapBlocks is sized to
// cover the inodes that actually fit in inodeAreaBlocks (InodesPerBlock
// per block), one bit per inode, rounded up to a whole block;
// dataBitmapBlocks is sized the same way over what's left, one bit per
// remaining block.
func (sb *Superblock_t) Initialize(totalBlocks, inodeAreaBlocks int) (dataAreaBlocks int) {
	inodeNum := inodeAreaBlocks * InodesPerBlock
	inodeBitmapBlocks := util.Roundup(inodeNum, BSIZE*8) / (BSIZE * 8)
	if inodeBitmapBlocks == 0 {
		inodeBitmapBlocks = 1
	}
	used := 1 + inodeBitmapBlocks + inodeAreaBlocks
	if used >= totalBlocks {
		panic("fs: inode region leaves no room for data")
	}
	remaining := totalBlocks - used
	// data bitmap bits must cover the data blocks it itself displaces too.
	dataBitmapBlocks := util.Roundup(remaining, BSIZE*8+1) / (BSIZE * 8)
	if dataBitmapBlocks == 0 {
		dataBitmapBlocks = 1
	}
	dataAreaBlocks = remaining - dataBitmapBlocks

	sb.SetMagic(EasyFSMagic)
	sb.SetTotalBlocks(totalBlocks)
	sb.SetInodeBitmapBlocks(inodeBitmapBlocks)
	sb.SetInodeAreaBlocks(inodeAreaBlocks)
	sb.SetDataBitmapBlocks(dataBitmapBlocks)
	sb.SetDataAreaBlocks(dataAreaBlocks)
	return dataAreaBlocks
}
