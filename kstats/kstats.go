// Package kstats counts kernel events and exports them, along with
// gauges read from the kernel's tables, through a per-kernel
// prometheus registry.
package kstats

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const (
	NAMESPACE = "oskern"
)

// Sources are the gauges the stats read from other components.
type Sources struct {
	LiveHandles   func() int64
	OpenedHandles func() uint64
	BytesRead     func() uint64
	BytesWritten  func() uint64
	PidsAvailable func() int
	Threads       func() int64
}

type Stats struct {
	Forks     atomic.Uint64
	ForkFails atomic.Uint64
	Execs     atomic.Uint64
	Exits     atomic.Uint64
	Reaps     atomic.Uint64
	Syscalls  atomic.Uint64

	src     Sources
	reg     *prometheus.Registry
	metrics map[string]prometheus.Collector
}

func New(src Sources) *Stats {
	st := &Stats{
		src:     src,
		reg:     prometheus.NewRegistry(),
		metrics: make(map[string]prometheus.Collector),
	}
	st.counter("proc", "forks_total", "Successful forks.", st.Forks.Load)
	st.counter("proc", "fork_failures_total", "Forks that failed and were unwound.", st.ForkFails.Load)
	st.counter("proc", "execs_total", "Programs started by exec or runprogram.", st.Execs.Load)
	st.counter("proc", "exits_total", "Processes that called exit.", st.Exits.Load)
	st.counter("proc", "reaps_total", "Zombies reaped by waitpid.", st.Reaps.Load)
	st.counter("proc", "syscalls_total", "System calls dispatched.", st.Syscalls.Load)
	st.counter("file", "opened_total", "File handles created.", src.OpenedHandles)
	st.counter("file", "read_bytes_total", "Bytes read through descriptors.", src.BytesRead)
	st.counter("file", "written_bytes_total", "Bytes written through descriptors.", src.BytesWritten)
	st.gauge("file", "handles", "Live file handles.", func() float64 { return float64(src.LiveHandles()) })
	st.gauge("proc", "pids_available", "Free pids.", func() float64 { return float64(src.PidsAvailable()) })
	st.gauge("proc", "threads", "Running threads.", func() float64 { return float64(src.Threads()) })
	return st
}

func (st *Stats) add(name string, c prometheus.Collector) {
	st.reg.MustRegister(c)
	st.metrics[name] = c
}

func (st *Stats) counter(subsystem, name, help string, f func() uint64) {
	st.add(subsystem+"_"+name, prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(f()) }))
}

func (st *Stats) gauge(subsystem, name, help string, f func() float64) {
	st.add(subsystem+"_"+name, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: NAMESPACE,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, f))
}

func (st *Stats) Registry() *prometheus.Registry {
	return st.reg
}

// Metric returns the collector registered as subsystem_name, e.g.
// "proc_forks_total".
func (st *Stats) Metric(name string) prometheus.Collector {
	return st.metrics[name]
}

func (st *Stats) String() string {
	return fmt.Sprintf("forks %s (failed %s) execs %s exits %s reaps %s syscalls %s; handles %d (opened %s) read %s written %s; pids free %s threads %d",
		humanize.Comma(int64(st.Forks.Load())),
		humanize.Comma(int64(st.ForkFails.Load())),
		humanize.Comma(int64(st.Execs.Load())),
		humanize.Comma(int64(st.Exits.Load())),
		humanize.Comma(int64(st.Reaps.Load())),
		humanize.Comma(int64(st.Syscalls.Load())),
		st.src.LiveHandles(),
		humanize.Comma(int64(st.src.OpenedHandles())),
		humanize.Bytes(st.src.BytesRead()),
		humanize.Bytes(st.src.BytesWritten()),
		humanize.Comma(int64(st.src.PidsAvailable())),
		st.src.Threads(),
	)
}
