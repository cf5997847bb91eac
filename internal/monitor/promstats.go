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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promCollector adapts Stats to prometheus.Collector, serving /metrics
// alongside the JSON endpoints on the same monitoring port.
type promCollector struct {
	stats *Stats

	cycles          *prometheus.Desc
	dispatchSuccess *prometheus.Desc
	dispatchFailure *prometheus.Desc
	reminderCounter *prometheus.Desc
	tickMean        *prometheus.Desc
	tickVariance    *prometheus.Desc
	rss             *prometheus.Desc
	cpuPct          *prometheus.Desc
	goroutines      *prometheus.Desc
}

func newPromCollector(s *Stats) *promCollector {
	return &promCollector{
		stats:           s,
		cycles:          prometheus.NewDesc("wgmonitor_cycles_total", "Completed orchestrator cycles", nil, nil),
		dispatchSuccess: prometheus.NewDesc("wgmonitor_dispatch_success_total", "Successful notification dispatches", nil, nil),
		dispatchFailure: prometheus.NewDesc("wgmonitor_dispatch_failure_total", "Failed notification dispatches", nil, nil),
		reminderCounter: prometheus.NewDesc("wgmonitor_reminder_counter", "Current reminder backoff counter", nil, nil),
		tickMean:        prometheus.NewDesc("wgmonitor_tick_duration_mean_ns", "Running mean cycle duration", nil, nil),
		tickVariance:    prometheus.NewDesc("wgmonitor_tick_duration_variance_ns2", "Running variance of cycle duration", nil, nil),
		rss:             prometheus.NewDesc("wgmonitor_process_rss_bytes", "Resident set size", nil, nil),
		cpuPct:          prometheus.NewDesc("wgmonitor_process_cpu_pct", "Process CPU percent, last sample window", nil, nil),
		goroutines:      prometheus.NewDesc("wgmonitor_goroutines", "Live goroutine count", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *promCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cycles
	ch <- c.dispatchSuccess
	ch <- c.dispatchFailure
	ch <- c.reminderCounter
	ch <- c.tickMean
	ch <- c.tickVariance
	ch <- c.rss
	ch <- c.cpuPct
	ch <- c.goroutines
}

// Collect implements prometheus.Collector.
func (c *promCollector) Collect(ch chan<- prometheus.Metric) {
	counters := c.stats.GetCounters()
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(counters["wgmonitor.cycles.total"]))
	ch <- prometheus.MustNewConstMetric(c.dispatchSuccess, prometheus.CounterValue, float64(counters["wgmonitor.dispatch.success"]))
	ch <- prometheus.MustNewConstMetric(c.dispatchFailure, prometheus.CounterValue, float64(counters["wgmonitor.dispatch.failure"]))
	ch <- prometheus.MustNewConstMetric(c.reminderCounter, prometheus.GaugeValue, float64(counters["wgmonitor.reminder_counter"]))
	ch <- prometheus.MustNewConstMetric(c.tickMean, prometheus.GaugeValue, float64(counters["wgmonitor.tick.mean_ns"]))
	ch <- prometheus.MustNewConstMetric(c.tickVariance, prometheus.GaugeValue, float64(counters["wgmonitor.tick.variance_ns2"]))
	ch <- prometheus.MustNewConstMetric(c.rss, prometheus.GaugeValue, float64(counters["wgmonitor.process.rss"]))
	ch <- prometheus.MustNewConstMetric(c.cpuPct, prometheus.GaugeValue, float64(counters["wgmonitor.process.cpu_pct.avg"])/100)
	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(counters["wgmonitor.runtime.cpu.goroutines"]))
}

// RegisterPrometheusHandlers mounts /metrics on mux using a freshly
// registered collector bound to s.
func RegisterPrometheusHandlers(mux *http.ServeMux, s *Stats) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newPromCollector(s))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
