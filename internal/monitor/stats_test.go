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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsRecordCycleAndDispatch(t *testing.T) {
	s, err := NewStats()
	require.NoError(t, err)

	s.RecordCycle()
	s.RecordCycle()
	s.RecordDispatch(true)
	s.RecordDispatch(false)

	counters := s.GetCounters()
	require.Equal(t, int64(2), counters["wgmonitor.cycles.total"])
	require.Equal(t, int64(1), counters["wgmonitor.dispatch.success"])
	require.Equal(t, int64(1), counters["wgmonitor.dispatch.failure"])
}

func TestStatsObserveTickFeedsMeanVariance(t *testing.T) {
	s, err := NewStats()
	require.NoError(t, err)

	s.ObserveTick(100 * time.Millisecond)
	s.ObserveTick(200 * time.Millisecond)

	counters := s.GetCounters()
	require.Greater(t, counters["wgmonitor.tick.mean_ns"], int64(0))
}

func TestStatsSatisfiesStatsServer(t *testing.T) {
	var _ StatsServer = (*Stats)(nil)
}

func TestStatsCollectSysStatsPopulatesRuntimeFields(t *testing.T) {
	s, err := NewStats()
	require.NoError(t, err)

	s.CollectSysStats()
	counters := s.GetCounters()
	require.GreaterOrEqual(t, counters["wgmonitor.runtime.cpu.goroutines"], int64(1))
}
