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

func TestReportSchedulerJustStarted(t *testing.T) {
	s := NewReportScheduler(DefaultReportSchedule())
	now := time.Now()
	d := s.Decide(now, false, false, true)
	require.True(t, d.ShouldReport)
	require.True(t, d.JustStarted)
	s.Commit(now, d, true, true)
}

func TestReportSchedulerReminderEscalation(t *testing.T) {
	sched := ReportSchedule{time.Hour, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour, 5 * time.Hour}
	s := NewReportScheduler(sched)
	now := time.Now()
	d := s.Decide(now, false, false, true)
	s.Commit(now, d, true, true) // cycle 0, consumes JustStarted

	// Peer lost: a change triggers an immediate report.
	now = now.Add(time.Minute)
	d = s.Decide(now, true, false, false)
	require.True(t, d.ShouldReport)
	s.Commit(now, d, false, true)
	require.Equal(t, 0, s.ReminderCounter(), "a plain change doesn't bump the reminder counter")

	// No new change, but not enough time has passed for a reminder.
	now = now.Add(30 * time.Minute)
	d = s.Decide(now, false, false, false)
	require.False(t, d.ShouldReport)

	// First reminder threshold reached.
	now = now.Add(40 * time.Minute)
	d = s.Decide(now, false, false, false)
	require.True(t, d.ShouldRemind)
	require.True(t, d.ShouldReport)
	s.Commit(now, d, false, true)
	require.Equal(t, 1, s.ReminderCounter())

	// Counter never exceeds 4 no matter how many reminders fire.
	for i := 0; i < 10; i++ {
		now = now.Add(6 * time.Hour)
		d = s.Decide(now, false, false, false)
		s.Commit(now, d, false, true)
	}
	require.LessOrEqual(t, s.ReminderCounter(), 4)
}

func TestReportSchedulerReturnOnlyDoesNotResetCadence(t *testing.T) {
	sched := ReportSchedule{time.Hour, time.Hour, time.Hour, time.Hour, time.Hour}
	s := NewReportScheduler(sched)
	now := time.Now()
	d := s.Decide(now, false, false, true)
	s.Commit(now, d, true, true)

	// Drive the reminder counter to 2 via two reminder cycles while lost.
	now = now.Add(time.Hour)
	d = s.Decide(now, false, false, false)
	s.Commit(now, d, false, true)
	now = now.Add(time.Hour)
	d = s.Decide(now, false, false, false)
	s.Commit(now, d, false, true)
	require.Equal(t, 2, s.ReminderCounter())
	lastReport := s.lastReportTime

	// One peer returns; bucket is just_returned-only, all_present false
	// because another peer is still lost.
	now = now.Add(time.Minute)
	d = s.Decide(now, true, true, false)
	require.True(t, d.OnlyReturns)
	s.Commit(now, d, false, true)

	require.Equal(t, 2, s.ReminderCounter(), "reminder counter must be unchanged by a returns-only report")
	require.Equal(t, lastReport, s.lastReportTime, "last report time must be unchanged by a returns-only report")
}

func TestReportSchedulerResetsCounterWhenAllPresent(t *testing.T) {
	sched := ReportSchedule{time.Hour, time.Hour, time.Hour, time.Hour, time.Hour}
	s := NewReportScheduler(sched)
	now := time.Now()
	d := s.Decide(now, false, false, true)
	s.Commit(now, d, true, true)

	now = now.Add(time.Hour)
	d = s.Decide(now, false, false, false)
	s.Commit(now, d, false, true)
	require.Equal(t, 1, s.ReminderCounter())

	now = now.Add(time.Minute)
	d = s.Decide(now, true, false, true)
	s.Commit(now, d, true, true)
	require.Equal(t, 0, s.ReminderCounter())
}
