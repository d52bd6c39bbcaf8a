package proc

import (
	"testing"

	"sv39os/config"
	"sv39os/mem"
	"sv39os/vm"
)

func TestPassLessNormalOrder(t *testing.T) {
	if !Pass(10).Less(Pass(20)) {
		t.Fatal("10 should sort before 20")
	}
	if Pass(20).Less(Pass(10)) {
		t.Fatal("20 should not sort before 10")
	}
	if Pass(10).Less(Pass(10)) {
		t.Fatal("a pass is never less than itself")
	}
}

func TestPassLessWraparound(t *testing.T) {
	// A pass just short of the uint64 wrap must still sort before a
	// small pass that has already wrapped past zero: their plain
	// difference exceeds BigStride/2, so Less treats it as a wrap.
	wrapped := Pass(0) - Pass(1) // ^uint64(0), the last value before the wrap
	if !wrapped.Less(Pass(config.BigStride)) {
		t.Fatal("a pass just short of the wrap should still sort before a pass that has wrapped past zero")
	}
	// Two passes more than BigStride/2 apart in the "forward" direction
	// are treated as having wrapped, so the larger one sorts first.
	far := Pass(config.BigStride)
	if !far.Less(Pass(0)) {
		t.Fatal("pass BigStride ahead of zero should be treated as having wrapped past it")
	}
}

func newTestTCB(pid int, priority int) *TCB {
	return &TCB{
		Pid:      pid,
		status:   Ready,
		priority: priority,
	}
}

func TestFetchTaskPicksSmallestPass(t *testing.T) {
	taskManager.ready = nil // isolate from any other test's leftovers

	a := newTestTCB(100, 16)
	b := newTestTCB(101, 16)
	c := newTestTCB(102, 16)
	a.pass = 30
	b.pass = 10
	c.pass = 20
	AddTask(a)
	AddTask(b)
	AddTask(c)

	first := FetchTask()
	if first != b {
		t.Fatalf("expected task %d (smallest pass) first, got %d", b.Pid, first.Pid)
	}
	second := FetchTask()
	if second != c {
		t.Fatalf("expected task %d next, got %d", c.Pid, second.Pid)
	}
	third := FetchTask()
	if third != a {
		t.Fatalf("expected task %d last, got %d", a.Pid, third.Pid)
	}
	if FetchTask() != nil {
		t.Fatal("ready queue should be empty now")
	}
}

func TestFetchTaskAdvancesPass(t *testing.T) {
	taskManager.ready = nil

	lo := newTestTCB(200, 4) // BigStride/4 per dispatch
	AddTask(lo)
	before := lo.Pass()
	FetchTask()
	after := lo.Pass()
	if after-before != Pass(config.BigStride/4) {
		t.Fatalf("pass should advance by BigStride/priority = %d, got %d", config.BigStride/4, after-before)
	}
}

func TestStrideFairnessRatio(t *testing.T) {
	taskManager.ready = nil

	// Priorities 2 and 8: each dispatch advances a task's pass by
	// BigStride/priority, so the priority-8 task takes a step a quarter
	// the size of the priority-2 task's and, over many dispatches, is
	// fetched about four times as often.
	slow := newTestTCB(300, 8)  // small step, dispatched often
	fast := newTestTCB(301, 2)  // large step, dispatched rarely
	AddTask(slow)
	AddTask(fast)

	slowCount, fastCount := 0, 0
	for i := 0; i < 1000; i++ {
		next := FetchTask()
		if next == slow {
			slowCount++
		} else {
			fastCount++
		}
		AddTask(next)
	}

	ratio := float64(slowCount) / float64(fastCount)
	// priority(slow)/priority(fast) = 8/2 = 4
	if ratio < 3.5 || ratio > 4.5 {
		t.Fatalf("expected dispatch ratio near 4.0, got %.2f (slow=%d fast=%d)", ratio, slowCount, fastCount)
	}
}

func TestPidAllocRecycle(t *testing.T) {
	p1 := allocPid()
	p2 := allocPid()
	if p1 == p2 {
		t.Fatal("two live allocations must not collide")
	}
	deallocPid(p1)
	p3 := allocPid()
	if p3 != p1 {
		t.Fatalf("recycled pid should be reused first, got %d want %d", p3, p1)
	}
}

func TestPidDeallocDoubleFreePanics(t *testing.T) {
	pid := allocPid()
	deallocPid(pid)
	defer func() {
		if recover() == nil {
			t.Fatal("double free of a pid must panic")
		}
	}()
	deallocPid(pid)
}

func newTestFrameAlloc() *mem.FrameAllocator {
	return mem.NewFrameAllocator(0, 64*config.PageSize)
}

func TestExitReparentsChildrenToInit(t *testing.T) {
	fa := newTestFrameAlloc()
	grandparent := newTestTCB(400, 16)
	grandparent.memSet = vm.NewBare(fa)
	InitTask = grandparent

	parent := newTestTCB(401, 16)
	parent.memSet = vm.NewBare(fa)
	parent.parent = grandparent

	child := newTestTCB(402, 16)
	child.memSet = vm.NewBare(fa)
	child.parent = parent
	parent.children = []*TCB{child}

	Exit(parent, 0)

	if !parent.IsZombie() {
		t.Fatal("parent should be a zombie after Exit")
	}
	if len(parent.Children()) != 0 {
		t.Fatal("parent's children list should be cleared on exit")
	}
	found := false
	for _, c := range grandparent.Children() {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("child should have been reparented onto InitTask")
	}
	if child.Parent() != grandparent {
		t.Fatal("child's parent pointer should now point at InitTask")
	}
}

func TestWaitPidLifecycle(t *testing.T) {
	fa := newTestFrameAlloc()
	KernelSpace = vm.NewBare(fa)
	parent := newTestTCB(500, 16)
	parent.memSet = vm.NewBare(fa)

	if _, _, err := WaitPid(parent, -1); err == 0 {
		t.Fatal("waitpid with no children at all should return ECHILD")
	}

	child := newTestTCB(allocPid(), 16)
	child.memSet = vm.NewBare(fa)
	child.parent = parent
	child.KernelStack = NewKernelStack(child.Pid)
	parent.children = []*TCB{child}
	register(child)

	if pid, _, err := WaitPid(parent, child.Pid); pid != -2 || err != 0 {
		t.Fatalf("waitpid on a still-running child should return -2, got pid=%d err=%v", pid, err)
	}

	Exit(child, 7)

	gotPid, code, err := WaitPid(parent, child.Pid)
	if err != 0 || gotPid != child.Pid || code != 7 {
		t.Fatalf("waitpid on zombie child should return (pid=%d, code=7, 0), got (%d, %d, %v)", child.Pid, gotPid, code, err)
	}
	if len(parent.Children()) != 0 {
		t.Fatal("reaped child should be removed from parent's children list")
	}

	if _, _, err := WaitPid(parent, child.Pid); err == 0 {
		t.Fatal("waiting again on an already-reaped child should return ECHILD")
	}
}
