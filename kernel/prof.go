package kernel

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/google/pprof/profile"

	"sv39os/config"
	"sv39os/defs"
	"sv39os/proc"
)

// ProfDevice backs the D_PROF synthetic inode: reading it snapshots
// per-task syscall-count activity into a gzip-compressed pprof
// profile, the stand-in this kernel has for a real CPU sampler (there
// is no timer interrupt driving sample collection here, so the
// "samples" are syscall tallies rather than program-counter hits).
type ProfDevice struct {
	mu       sync.Mutex
	tasks    func() []*proc.TCB
	rendered []byte
	off      int
}

// NewProfDevice builds a device that snapshots whatever tasks
// listTasks returns at the moment it is first read after opening.
func NewProfDevice(listTasks func() []*proc.TCB) *ProfDevice {
	return &ProfDevice{tasks: listTasks}
}

func (d *ProfDevice) render() []byte {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "syscalls", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "syscalls", Unit: "count"},
		Period:     1,
	}
	funcs := make(map[int]*profile.Function)
	locs := make(map[int]*profile.Location)
	nextID := uint64(1)

	for _, t := range d.tasks() {
		counts := t.SyscallCounts()
		for num, n := range counts {
			if n == 0 {
				continue
			}
			fn, ok := funcs[num]
			if !ok {
				fn = &profile.Function{ID: nextID, Name: syscallName(num)}
				nextID++
				funcs[num] = fn
				p.Function = append(p.Function, fn)
			}
			loc, ok := locs[num]
			if !ok {
				loc = &profile.Location{ID: nextID, Line: []profile.Line{{Function: fn}}}
				nextID++
				locs[num] = loc
				p.Location = append(p.Location, loc)
			}
			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{int64(n)},
				Label:    map[string][]string{"pid": {strconv.Itoa(t.Pid)}},
			})
		}
	}

	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

func syscallName(num int) string {
	if num < 0 || num >= config.MaxSyscallNum {
		return "syscall_unknown"
	}
	return "syscall_" + strconv.Itoa(num)
}

// Read streams the gzip-compressed profile snapshot taken at the
// first Read after (re)open.
func (d *ProfDevice) Read(dst []byte) (int, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rendered == nil {
		d.rendered = d.render()
	}
	if d.off >= len(d.rendered) {
		return 0, 0
	}
	n := copy(dst, d.rendered[d.off:])
	d.off += n
	return n, 0
}

func (d *ProfDevice) Write([]byte) (int, defs.Err_t) { return 0, defs.EPERM }
func (d *ProfDevice) Close() defs.Err_t               { return 0 }

// Reopen clears the cached snapshot so the next Read re-gathers.
func (d *ProfDevice) Reopen() defs.Err_t {
	d.mu.Lock()
	d.rendered = nil
	d.off = 0
	d.mu.Unlock()
	return 0
}

func (d *ProfDevice) Stat() (int, bool, uint32, defs.Err_t) { return 0, false, 1, 0 }
