// Package streak holds the pure streak-continuity logic: the calendar
// rule evaluator and the from-scratch calculator. Nothing here touches
// storage, caches or the clock; every function takes explicit dates.
package streak

import (
	"time"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

// IsApplicableDay reports whether the given day counts toward streak
// continuity under the policy. Skipped days are transparent: they
// neither extend nor break a streak.
func IsApplicableDay(date time.Time, policy domain.StreakPolicy) bool {
	return !policy.Skips(domain.DayOf(date).Weekday())
}

// NextApplicableDay returns the first applicable day strictly after the
// given one. The scan is bounded to a week; a policy that skips all seven
// weekdays is rejected at validation time, so ok is false only for
// malformed input.
func NextApplicableDay(after time.Time, policy domain.StreakPolicy) (time.Time, bool) {
	day := domain.DayOf(after)
	for i := 0; i < 7; i++ {
		day = day.AddDate(0, 0, 1)
		if IsApplicableDay(day, policy) {
			return day, true
		}
	}
	return time.Time{}, false
}

// ContinuesStreak reports whether next chains onto prev: next is later
// than prev and every calendar day strictly between them is skipped by
// the policy. Same-day comparisons are the caller's concern.
func ContinuesStreak(prev, next time.Time, policy domain.StreakPolicy) bool {
	p := domain.DayOf(prev)
	n := domain.DayOf(next)
	if !n.After(p) {
		return false
	}

	for d := p.AddDate(0, 0, 1); d.Before(n); d = d.AddDate(0, 0, 1) {
		if IsApplicableDay(d, policy) {
			return false
		}
	}
	return true
}

// Alive reports whether a streak whose last qualifying day is last has
// survived to asOf: no applicable day has passed unanswered strictly
// between the two. A streak is always alive on its own completion day.
func Alive(last, asOf time.Time, policy domain.StreakPolicy) bool {
	l := domain.DayOf(last)
	c := domain.DayOf(asOf)
	if !c.After(l) {
		return true
	}
	return ContinuesStreak(l, c, policy)
}

// DaysUntilBreak counts, in applicable days, how long the streak ending
// at lastCompletion survives from current without a further completion.
// 0 means already lapsed; 1 means the next applicable day is the last
// chance ("breaks tomorrow" in UI terms).
func DaysUntilBreak(lastCompletion, current time.Time, policy domain.StreakPolicy) int {
	l := domain.DayOf(lastCompletion)
	c := domain.DayOf(current)

	if !Alive(l, c, policy) {
		return 0
	}

	deadline, ok := NextApplicableDay(l, policy)
	if !ok {
		return 0
	}

	// The streak cannot be closer to breaking than its own last
	// completion day allows.
	if c.Before(l) {
		c = l
	}

	count := 0
	for d := c; !d.After(deadline); d = d.AddDate(0, 0, 1) {
		if IsApplicableDay(d, policy) {
			count++
		}
	}
	return count
}
