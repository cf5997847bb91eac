/*
Copyright (c) wg-monitor authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitor

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"
	"github.com/shirou/gopsutil/process"
)

// StatsServer is the interface the Orchestrator talks to, mirroring
// ptp/sptp/client.StatsServer. Stats implements it (and so does JSONStats,
// which embeds Stats); the Prometheus collector only reads from Stats.
type StatsServer interface {
	RecordCycle()
	RecordDispatch(success bool)
	ObserveTick(d time.Duration)
	CollectSysStats()
	SetReminderCounter(n int)
}

// Stats holds the in-process counters exposed over JSON and Prometheus.
type Stats struct {
	sync.Mutex

	cycles           int64
	dispatchSuccess  int64
	dispatchFailure  int64
	reminderCounter  int64

	tickDuration *welford.Stats

	procStartTime time.Time
	memstats      runtime.MemStats
	proc          *process.Process

	uptimeSec      int64
	cpuPCT         int64
	rss            int64
	goRoutines     int64
	gcPauseNs      int64
	gcPauseTotalNs int64
}

// NewStats creates a Stats tracker bound to the current process.
func NewStats() (*Stats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	return &Stats{
		tickDuration:  welford.New(),
		procStartTime: time.Now(),
		proc:          proc,
	}, err
}

// RecordCycle atomically increments the completed-cycle counter.
func (s *Stats) RecordCycle() { atomic.AddInt64(&s.cycles, 1) }

// RecordDispatch atomically increments the success or failure counter.
func (s *Stats) RecordDispatch(success bool) {
	if success {
		atomic.AddInt64(&s.dispatchSuccess, 1)
	} else {
		atomic.AddInt64(&s.dispatchFailure, 1)
	}
}

// SetReminderCounter mirrors the scheduler's current reminder_counter for
// display purposes only; it never feeds back into scheduling decisions.
func (s *Stats) SetReminderCounter(n int) { atomic.StoreInt64(&s.reminderCounter, int64(n)) }

// ObserveTick feeds one cycle's wall-clock duration into the running
// mean/variance estimator.
func (s *Stats) ObserveTick(d time.Duration) {
	s.Lock()
	defer s.Unlock()
	s.tickDuration.Add(float64(d.Nanoseconds()))
}

// CollectSysStats gathers process-level RSS/CPU/goroutine/GC metrics, the
// same fields ptp/sptp/client/sysstats.go tracks.
func (s *Stats) CollectSysStats() {
	s.Lock()
	defer s.Unlock()

	runtime.ReadMemStats(&s.memstats)
	s.uptimeSec = time.Now().Unix() - s.procStartTime.Unix()

	if val, err := s.proc.Percent(0); err == nil {
		s.cpuPCT = int64(val * 100)
	} else {
		log.Debugf("failed to read process CPU percent: %v", err)
	}
	if val, err := s.proc.MemoryInfo(); err == nil {
		s.rss = int64(val.RSS)
	}

	s.goRoutines = int64(runtime.NumGoroutine())
	s.gcPauseNs = int64(s.memstats.PauseTotalNs) - s.gcPauseTotalNs
	s.gcPauseTotalNs = int64(s.memstats.PauseTotalNs)
}

// GetCounters returns a flat map snapshot suitable for JSON serialization.
func (s *Stats) GetCounters() map[string]int64 {
	s.Lock()
	defer s.Unlock()
	return map[string]int64{
		"wgmonitor.cycles.total":           atomic.LoadInt64(&s.cycles),
		"wgmonitor.dispatch.success":       atomic.LoadInt64(&s.dispatchSuccess),
		"wgmonitor.dispatch.failure":       atomic.LoadInt64(&s.dispatchFailure),
		"wgmonitor.reminder_counter":       atomic.LoadInt64(&s.reminderCounter),
		"wgmonitor.tick.mean_ns":           int64(s.tickDuration.Mean()),
		"wgmonitor.tick.variance_ns2":      int64(s.tickDuration.Variance()),
		"wgmonitor.runtime.cpu.goroutines": s.goRoutines,
		"wgmonitor.process.rss":            s.rss,
		"wgmonitor.process.cpu_pct.avg":    s.cpuPCT,
		"wgmonitor.process.uptime":         s.uptimeSec,
		"wgmonitor.runtime.gc.pause_ns":    s.gcPauseNs,
	}
}
