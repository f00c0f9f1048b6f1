package streak

import (
	"sort"
	"time"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

// Result is the from-scratch projection of a task's full log history.
// When the latest run has lapsed, CurrentStreak is 0 and the two dates
// still describe that run for display purposes.
type Result struct {
	CurrentStreak      int
	BestStreak         int
	LastCompletionDate *time.Time
	StreakStartDate    *time.Time
}

// Calculate walks the full log history chronologically and derives the
// authoritative streak state as of asOf. It is the slow path the
// incremental service falls back to on gaps, and the source of truth the
// fast path must never diverge from.
//
// Callers merging into a stored record must take
// max(stored best, recalculated best): best streaks never regress.
func Calculate(logs []*domain.CompletionLog, policy domain.StreakPolicy, asOf time.Time) Result {
	days := qualifyingDays(logs, policy)
	if len(days) == 0 {
		return Result{}
	}

	best := 0
	runLen := 0
	var runStart, prev time.Time

	for i, day := range days {
		if i > 0 && ContinuesStreak(prev, day, policy) {
			runLen++
		} else {
			if runLen > best {
				best = runLen
			}
			runLen = 1
			runStart = day
		}
		prev = day
	}
	if runLen > best {
		best = runLen
	}

	last := prev
	start := runStart
	res := Result{
		BestStreak:         best,
		LastCompletionDate: &last,
		StreakStartDate:    &start,
	}

	if Alive(last, asOf, policy) {
		res.CurrentStreak = runLen
	}
	return res
}

// CalculateAsOf answers "what was the streak on date X" without mutating
// anything: logs after asOf are ignored and asOf plays the role of now.
func CalculateAsOf(logs []*domain.CompletionLog, asOf time.Time, policy domain.StreakPolicy) Result {
	day := domain.DayOf(asOf)
	var visible []*domain.CompletionLog
	for _, l := range logs {
		if !domain.DayOf(l.Date).After(day) {
			visible = append(visible, l)
		}
	}
	return Calculate(visible, policy, day)
}

// qualifyingDays collapses logs to one count per calendar day (repeated
// writes for a day keep the highest) and returns the ascending days that
// meet the policy minimum.
func qualifyingDays(logs []*domain.CompletionLog, policy domain.StreakPolicy) []time.Time {
	counts := make(map[time.Time]int, len(logs))
	for _, l := range logs {
		day := domain.DayOf(l.Date)
		if l.Count > counts[day] {
			counts[day] = l.Count
		}
	}

	var days []time.Time
	for day, count := range counts {
		if count >= policy.MinimumCount {
			days = append(days, day)
		}
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})
	return days
}
