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

import "time"

// ReportSchedule is the fixed five-element ordered reminder schedule, each
// duration at least as long as the previous.
type ReportSchedule [5]time.Duration

// DefaultReportSchedule returns the spec's default cadence: 6h, 24h, 48h,
// 72h, 7d.
func DefaultReportSchedule() ReportSchedule {
	return ReportSchedule{
		6 * time.Hour,
		24 * time.Hour,
		48 * time.Hour,
		72 * time.Hour,
		7 * 24 * time.Hour,
	}
}

// delay returns schedule[min(counter, 4)].
func (s ReportSchedule) delay(counter int) time.Duration {
	if counter > 4 {
		counter = 4
	}
	if counter < 0 {
		counter = 0
	}
	return s[counter]
}

// ScheduleDecision is the outcome of one cycle's scheduling evaluation.
type ScheduleDecision struct {
	ShouldReport bool
	ShouldRemind bool
	OnlyReturns  bool
	JustStarted  bool
}

// ReportScheduler implements the backoff-schedule report trigger (spec
// §4.6). It is stateful across cycles: last_report_time and
// reminder_counter persist until Commit is called.
type ReportScheduler struct {
	Schedule ReportSchedule

	lastReportTime  time.Time
	reminderCounter int
	cycleIndex      int
}

// NewReportScheduler returns a scheduler with reminder_counter=0 and
// last_report_time unset, ready for cycle 0.
func NewReportScheduler(schedule ReportSchedule) *ReportScheduler {
	return &ReportScheduler{Schedule: schedule}
}

// ReminderCounter exposes the current counter, for metrics/diagnostics.
func (s *ReportScheduler) ReminderCounter() int { return s.reminderCounter }

// Decide evaluates steps 1-3 of spec §4.6 for the current cycle.
// changedAnything is true if any peer transitioned this cycle. onlyReturns
// must already reflect "every changed peer is in just_returned and that
// bucket is non-empty" (the caller has the bucket membership at hand).
func (s *ReportScheduler) Decide(now time.Time, changedAnything, onlyReturns, allPresent bool) ScheduleDecision {
	justStarted := s.cycleIndex == 0
	shouldRemind := !allPresent && now.Sub(s.lastReportTime) >= s.Schedule.delay(s.reminderCounter)
	shouldReport := changedAnything || justStarted || shouldRemind
	return ScheduleDecision{
		ShouldReport: shouldReport,
		ShouldRemind: shouldRemind,
		OnlyReturns:  onlyReturns && changedAnything,
		JustStarted:  justStarted,
	}
}

// Commit applies steps 4-6 of spec §4.6 after dispatch has run (or was
// skipped because ShouldReport was false). It must be called exactly once
// per cycle, after Decide, and advances the internal cycle counter.
func (s *ReportScheduler) Commit(now time.Time, d ScheduleDecision, allPresent, dispatchSuccess bool) {
	defer func() { s.cycleIndex++ }()

	if !d.ShouldReport {
		return
	}
	if d.OnlyReturns {
		// Good-news-only reports never touch the reminder cadence.
		return
	}
	if !dispatchSuccess {
		return
	}
	s.lastReportTime = now
	if allPresent {
		s.reminderCounter = 0
	} else if d.ShouldRemind && s.reminderCounter < 4 {
		s.reminderCounter++
	}
}
