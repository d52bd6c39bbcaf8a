// Command mkfs builds a flat EasyFS disk image from a host skeleton
// directory, the sv39os analogue of the teacher's mkfs utility.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"sv39os/ufs"
)

const (
	totalBlocks = 40000
	// inodeCountHint is a plain inode count (see fs.Create), not a
	// block count; 4096 inodes is comfortably more than any skeleton
	// directory this tool has ever been pointed at needs.
	inodeCountHint = 4096
)

func addfiles(u *ufs.Ufs_t, skeldir string) {
	err := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fmt.Printf("failed to access %q: %v\n", path, err)
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(skeldir, path)
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			fmt.Printf("failed to read %q: %v\n", path, rerr)
			return nil
		}
		if e := u.MkFile(rel, data); e != 0 {
			fmt.Printf("failed to create file %v: %v\n", rel, e)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error walking %q: %v\n", skeldir, err)
		os.Exit(1)
	}
}

func main() {
	if len(os.Args) < 3 {
		fmt.Printf("Usage: mkfs <output image> <skel dir>\n")
		os.Exit(1)
	}

	image := os.Args[1]
	skeldir := os.Args[2]

	u, err := ufs.MkDisk(image, totalBlocks, inodeCountHint)
	if err != nil {
		fmt.Printf("failed to create disk image: %v\n", err)
		os.Exit(1)
	}

	addfiles(u, skeldir)

	ufs.ShutdownFS(u)
}
