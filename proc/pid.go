// Package proc implements task control blocks, PID/kernel-stack
// allocation, and the stride scheduler (components H and I).
package proc

import (
	"sv39os/config"
	"sv39os/mem"
	"sv39os/vm"
)

// KernelSpace and FrameAlloc are wired up by the kernel package at
// boot (kernel.Init), mirroring the original's KERNEL_SPACE/FRAME_ALLOCATOR
// lazy statics: every task's kernel stack lives as a framed area in the
// one shared kernel address space.
var (
	KernelSpace *vm.MemorySet
	FrameAlloc  *mem.FrameAllocator
)

// PidAllocator hands out process ids with the same bump+recycle
// discipline as the physical frame allocator.
type PidAllocator struct {
	current  int
	recycled []int
}

var pidAllocator PidAllocator

func allocPid() int {
	if n := len(pidAllocator.recycled); n > 0 {
		pid := pidAllocator.recycled[n-1]
		pidAllocator.recycled = pidAllocator.recycled[:n-1]
		return pid
	}
	pid := pidAllocator.current
	pidAllocator.current++
	return pid
}

func deallocPid(pid int) {
	if pid >= pidAllocator.current {
		panic("proc: dealloc of never-allocated pid")
	}
	for _, p := range pidAllocator.recycled {
		if p == pid {
			panic("proc: pid double free")
		}
	}
	pidAllocator.recycled = append(pidAllocator.recycled, pid)
}

// KernelStackPosition returns (bottom, top) of pid's kernel stack slot
// in the kernel address space: stacks count down from the trampoline,
// one PageSize guard page between each.
func KernelStackPosition(pid int) (bottom, top uint64) {
	top = uint64(config.Trampoline) - uint64(pid)*(config.KernelStackSize+config.PageSize)
	bottom = top - config.KernelStackSize
	return
}

// KernelStack is a task's kernel-mode stack, mapped into KernelSpace
// for the lifetime of the task.
type KernelStack struct {
	pid int
}

// NewKernelStack maps pid's kernel stack into KernelSpace.
func NewKernelStack(pid int) *KernelStack {
	bottom, top := KernelStackPosition(pid)
	KernelSpace.InsertFramedArea(vm.VA(bottom), vm.VA(top), vm.PermR|vm.PermW)
	return &KernelStack{pid: pid}
}

// Top returns the kernel stack's top address (the initial sp a task
// context switches to).
func (ks *KernelStack) Top() uint64 {
	_, top := KernelStackPosition(ks.pid)
	return top
}

// Release unmaps the kernel stack; called when a TCB is reaped.
func (ks *KernelStack) Release() {
	bottom, _ := KernelStackPosition(ks.pid)
	KernelSpace.RemoveAreaWithStartVPN(vm.VA(bottom).Floor())
}
