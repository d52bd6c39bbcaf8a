// Command kernel boots a disk image and drives the scheduler loop,
// the sv39os analogue of rust_main/os/src/main.rs: open (or format) the
// filesystem, load initproc, then run tasks until the ready queue is
// empty.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"sv39os/caller"
	"sv39os/kernel"
	"sv39os/proc"
	"sv39os/syscall"
	"sv39os/trap"
	"sv39os/ufs"
	"sv39os/vfs"
)

// totalBlocks matches the block count kernel.Init formats a fresh image
// with, so a disk created here is never smaller than what Init lays out.
const totalBlocks = 8192

func main() {
	image := flag.String("image", "fs.img", "EasyFS disk image path")
	initName := flag.String("init", "initproc", "name of the first program to run, looked up at the image root")
	flag.Parse()

	defer func() {
		if r := recover(); r != nil {
			caller.LogPanic(r)
			os.Exit(1)
		}
	}()

	disk, err := ufs.OpenFileDisk(*image)
	if err != nil {
		disk, err = ufs.NewFileDisk(*image, totalBlocks)
		if err != nil {
			fmt.Printf("kernel: cannot open or create %q: %v\n", *image, err)
			os.Exit(1)
		}
	}

	k := kernel.Init(disk)
	root := vfs.Root(k.FS)

	initInode, ferr := root.Find(*initName)
	if ferr != 0 {
		fmt.Printf("kernel: %q not found at image root: %v\n", *initName, ferr)
		os.Exit(1)
	}
	elfData := readAll(initInode)
	k.SpawnInit(elfData)

	ctx := &syscall.Context{Root: root, NewStdFds: kernel.StdFds, Stat: k.Stat, Prof: k.Prof}
	hart := newSimHart()

	proc.RunTasks(func(t *proc.TCB) {
		runTask(ctx, hart, t)
	})

	k.Cache.SyncAll()
	disk.Close()
}

// readAll slurps an inode's entire contents, the same pattern
// syscall.sysExec/sysSpawn use to load a binary already open as a
// *vfs.Inode.
func readAll(n *vfs.Inode) []byte {
	var out []byte
	buf := make([]byte, 4096)
	for {
		k := n.ReadAt(len(out), buf)
		if k == 0 {
			break
		}
		out = append(out, buf[:k]...)
	}
	return out
}

// runTask repeatedly hands t to the Hart and reacts to whatever trap
// comes back, mirroring the teacher's trap_handler dispatch loop:
// UserEnvCall decodes into a syscall and advances past the ecall
// instruction, faults kill the task, the timer interrupt yields it.
func runTask(ctx *syscall.Context, hart trap.Hart, t *proc.TCB) {
	t.EnsureStartTime()
	for {
		scause, stval := hart.RunUntilTrap(t.UserSatp(), uint64(t.TrapCtxPA()))
		tc := t.TrapCtx()

		switch trap.Decode(scause) {
		case trap.UserEnvCall:
			tc.Sepc += 4
			num := int(tc.X[17])
			ret, sig := syscall.Dispatch(ctx, t, num, tc.X[10], tc.X[11], tc.X[12], tc.X[13])
			switch sig {
			case syscall.Continue:
				tc.X[10] = uint64(ret)
			case syscall.Yield:
				proc.AddTask(t)
				return
			case syscall.Exited:
				return
			}

		case trap.StoreOrLoadPageFault:
			fmt.Printf("kernel: task %d store/load page fault, killing it\n", t.Pid)
			proc.Exit(t, -2)
			return

		case trap.IllegalInstruction:
			raw := make([]byte, 4)
			binary.LittleEndian.PutUint32(raw, uint32(stval))
			asm := trap.DisassembleIllegalInstruction(raw)
			fmt.Printf("kernel: task %d illegal instruction %s, killing it\n", t.Pid, asm)
			proc.Exit(t, -3)
			return

		case trap.SupervisorTimer:
			proc.AddTask(t)
			return

		default:
			panic(fmt.Sprintf("kernel: task %d trapped with unhandled scause %#x", t.Pid, scause))
		}
	}
}
