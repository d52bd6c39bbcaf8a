package ufs

import (
	"errors"

	"sv39os/defs"
	"sv39os/fs"
	"sv39os/stat"
	"sv39os/vfs"
)

// Ufs_t is the convenience handle cmd/mkfs builds a disk image through:
// a filesystem plus its root inode, the only directory this flat
// layout has.
type Ufs_t struct {
	disk *FileDisk
	efs  *fs.EasyFS
	root *vfs.Inode
}

// MkDisk lays out a brand-new EasyFS image at path sized totalBlocks,
// with room for inodeCountHint inodes (fs.Create decides the rest of
// the layout from there).
func MkDisk(path string, totalBlocks, inodeCountHint int) (*Ufs_t, error) {
	disk, err := NewFileDisk(path, totalBlocks)
	if err != nil {
		return nil, err
	}
	efs := fs.Create(disk, totalBlocks, inodeCountHint)
	return &Ufs_t{disk: disk, efs: efs, root: vfs.Root(efs)}, nil
}

// BootFS opens an existing disk image, verifying its superblock magic.
func BootFS(path string) (*Ufs_t, error) {
	disk, err := OpenFileDisk(path)
	if err != nil {
		return nil, err
	}
	efs, ok := fs.Open(disk)
	if !ok {
		disk.Close()
		return nil, errors.New("ufs: bad superblock magic")
	}
	return &Ufs_t{disk: disk, efs: efs, root: vfs.Root(efs)}, nil
}

// ShutdownFS closes the backing disk image.
func ShutdownFS(u *Ufs_t) {
	u.disk.Close()
}

// MkFile creates name at the root and writes data into it, if any.
func (u *Ufs_t) MkFile(name string, data []byte) defs.Err_t {
	n, err := u.root.Create(name)
	if err != 0 {
		return err
	}
	if len(data) > 0 {
		n.WriteAt(0, data)
	}
	return 0
}

// Append grows the file at name by appending data to its current
// contents.
func (u *Ufs_t) Append(name string, data []byte) defs.Err_t {
	n, err := u.root.Find(name)
	if err != 0 {
		return err
	}
	_, isDir, _ := n.Stat()
	if isDir {
		return defs.EISDIR
	}
	cur := make([]byte, 0)
	buf := make([]byte, fs.BSIZE)
	for {
		k := n.ReadAt(len(cur), buf)
		if k == 0 {
			break
		}
		cur = append(cur, buf[:k]...)
	}
	n.WriteAt(len(cur), data)
	return 0
}

// Read returns the entire contents of the file at name.
func (u *Ufs_t) Read(name string) ([]byte, defs.Err_t) {
	n, err := u.root.Find(name)
	if err != 0 {
		return nil, err
	}
	var out []byte
	buf := make([]byte, fs.BSIZE)
	for {
		k := n.ReadAt(len(out), buf)
		if k == 0 {
			break
		}
		out = append(out, buf[:k]...)
	}
	return out, 0
}

// Unlink removes the directory entry at name, freeing its inode once
// its link count reaches zero.
func (u *Ufs_t) Unlink(name string) defs.Err_t {
	return u.root.Unlink(name)
}

// Link adds newName as an additional directory entry for old.
func (u *Ufs_t) Link(old, newName string) defs.Err_t {
	return u.root.Link(old, newName)
}

// Stat reports the on-wire stat fields for name.
func (u *Ufs_t) Stat(name string) (*stat.Stat_t, defs.Err_t) {
	n, err := u.root.Find(name)
	if err != 0 {
		return nil, err
	}
	ino, isDir, nlink := n.Stat()
	st := &stat.Stat_t{}
	st.Wdev(0)
	st.Wino(uint64(ino))
	if isDir {
		st.Wmode(stat.ModeDir)
	} else {
		st.Wmode(stat.ModeFile)
	}
	st.Wnlink(nlink)
	return st, 0
}

// Ls lists every name at the root.
func (u *Ufs_t) Ls() []string {
	return u.root.Ls()
}
