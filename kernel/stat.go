package kernel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"sv39os/defs"
	"sv39os/fs"
	"sv39os/mem"
	"sv39os/proc"
)

// statCollector exports the kernel's internal gauges the way the
// examples' exporters export daemon state: one prometheus.Desc per
// gauge, filled in on every Collect rather than kept live, since
// these numbers only matter when something asks.
type statCollector struct {
	cache *fs.BlockCache
	fa    *mem.FrameAllocator

	framesInUse *prometheus.Desc
	cacheBlocks *prometheus.Desc
	readyTasks  *prometheus.Desc
}

func newStatCollector(cache *fs.BlockCache, fa *mem.FrameAllocator) *statCollector {
	return &statCollector{
		cache: cache,
		fa:    fa,
		framesInUse: prometheus.NewDesc(
			"sv39os_frames_in_use", "Physical frames currently checked out of the allocator.", nil, nil),
		cacheBlocks: prometheus.NewDesc(
			"sv39os_cache_blocks", "Disk blocks currently resident in the block cache.", nil, nil),
		readyTasks: prometheus.NewDesc(
			"sv39os_ready_tasks", "Tasks currently waiting in the scheduler's ready queue.", nil, nil),
	}
}

func (c *statCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesInUse
	ch <- c.cacheBlocks
	ch <- c.readyTasks
}

func (c *statCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.framesInUse, prometheus.GaugeValue, float64(c.fa.Allocated()))
	ch <- prometheus.MustNewConstMetric(c.cacheBlocks, prometheus.GaugeValue, float64(c.cache.Len()))
	ch <- prometheus.MustNewConstMetric(c.readyTasks, prometheus.GaugeValue, float64(proc.ReadyLen()))
}

// StatDevice backs the D_STAT synthetic inode: a read-only fd that
// renders the registry's current gauge values as text, one line per
// sample, on every Read.
type StatDevice struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	rendered []byte
	off      int
}

// NewStatDevice registers a fresh collector over cache and fa.
func NewStatDevice(cache *fs.BlockCache, fa *mem.FrameAllocator) *StatDevice {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newStatCollector(cache, fa))
	return &StatDevice{registry: reg}
}

func (d *StatDevice) render() []byte {
	mfs, err := d.registry.Gather()
	if err != nil {
		return []byte(fmt.Sprintf("sv39os: stat gather failed: %v\n", err))
	}
	var b strings.Builder
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(&b, "%s %v\n", mf.GetName(), m.GetGauge().GetValue())
		}
	}
	return []byte(b.String())
}

// Read streams the rendered snapshot taken at the first Read after the
// device was (re)opened; Reopen resets it so each open sees fresh
// numbers.
func (d *StatDevice) Read(dst []byte) (int, defs.Err_t) {
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

func (d *StatDevice) Write([]byte) (int, defs.Err_t) { return 0, defs.EPERM }
func (d *StatDevice) Close() defs.Err_t               { return 0 }

// Reopen clears the cached snapshot so the next Read re-gathers.
func (d *StatDevice) Reopen() defs.Err_t {
	d.mu.Lock()
	d.rendered = nil
	d.off = 0
	d.mu.Unlock()
	return 0
}

func (d *StatDevice) Stat() (int, bool, uint32, defs.Err_t) { return 0, false, 1, 0 }
