// Package kernel wires components A through J together at boot: the
// kernel's own address space and frame allocator, the console fds every
// task inherits, and the D_STAT/D_PROF synthetic devices. The scheduler
// loop itself is driven by cmd/kernel.
package kernel

import (
	"fmt"

	"sv39os/config"
	"sv39os/fd"
	"sv39os/fs"
	"sv39os/mem"
	"sv39os/proc"
	"sv39os/trap"
	"sv39os/vm"
)

// Kernel bundles the pieces Init wires up and cmd/kernel drives.
type Kernel struct {
	Disk    fs.Disk_i
	FS      *fs.EasyFS
	Cache   *fs.BlockCache
	Stat    *StatDevice
	Prof    *ProfDevice
	trapPPN vm.PPN
}

// Init builds the kernel's own address space and frame allocator, boots
// the filesystem over disk, and installs the console/stat/prof devices.
// It mirrors rust_main's startup sequence: clear bss (a no-op in a Go
// process), init the heap/frame allocator, activate the kernel space,
// then bring up the filesystem.
func Init(disk fs.Disk_i) *Kernel {
	mem.InitFrameAllocator(config.KernelEnd)
	fa := mem.Kallocer
	proc.FrameAlloc = fa

	trampolinePage, ok := mem.NewFrameTracker(fa)
	if !ok {
		panic("kernel: out of memory allocating the trampoline page")
	}
	trampolinePPN := vm.PPN(trampolinePage.PPN) / config.PageSize

	ks := vm.NewKernel(fa, trampolinePPN,
		vm.VA(config.KernelTextStart), vm.VA(config.KernelTextEnd),
		vm.VA(config.KernelRodataStart), vm.VA(config.KernelRodataEnd),
		vm.VA(config.KernelDataStart), vm.VA(config.KernelDataEnd),
		vm.VA(config.KernelBssStart), vm.VA(config.KernelBssEnd),
		vm.VA(config.MemoryEnd))
	proc.KernelSpace = ks

	efs, ok := fs.Open(disk)
	if !ok {
		fmt.Printf("kernel: no filesystem found, formatting fresh image\n")
		efs = fs.Create(disk, 8192, 256)
	}
	cache := efs.Cache

	k := &Kernel{
		Disk:    disk,
		FS:      efs,
		Cache:   cache,
		trapPPN: trampolinePPN,
	}
	k.Stat = NewStatDevice(cache, fa)
	k.Prof = NewProfDevice(proc.AllTasks)
	return k
}

// StdFds builds the console stdin/stdout pair every freshly spawned
// task starts with.
func StdFds() (*fd.Fd_t, *fd.Fd_t) {
	in := &fd.Fd_t{Fops: Stdin{}, Perms: fd.FD_READ}
	out := &fd.Fd_t{Fops: Stdout{}, Perms: fd.FD_WRITE}
	return in, out
}

// SpawnInit loads the first user task from elfData and adds it to the
// scheduler's ready queue, mirroring add_initproc.
func (k *Kernel) SpawnInit(elfData []byte) *proc.TCB {
	in, out := StdFds()
	t, err := proc.NewTCB(elfData, k.trapPPN, in, out)
	if err != 0 {
		panic(fmt.Sprintf("kernel: failed to load init task: %v", err))
	}
	if proc.InitTask == nil {
		proc.InitTask = t
	}
	proc.AddTask(t)
	return t
}
