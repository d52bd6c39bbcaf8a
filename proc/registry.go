package proc

import "sync"

// registry tracks every task that exists right now (running, ready, or
// zombie awaiting reap), independent of the scheduler's ready queue —
// a running or zombie task is off that queue but still very much
// "alive" for diagnostics like the profiling device.
var registry struct {
	mu  sync.Mutex
	all []*TCB
}

func register(t *TCB) {
	registry.mu.Lock()
	registry.all = append(registry.all, t)
	registry.mu.Unlock()
}

func unregister(t *TCB) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for i, c := range registry.all {
		if c == t {
			registry.all = append(registry.all[:i], registry.all[i+1:]...)
			return
		}
	}
}

// AllTasks returns every currently live task, for the D_PROF snapshot.
func AllTasks() []*TCB {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]*TCB, len(registry.all))
	copy(out, registry.all)
	return out
}
