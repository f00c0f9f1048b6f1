package domain

import "time"

// StreakRecord is the persisted per-task streak snapshot: the cached,
// incrementally-updated projection of what a full-history recalculation
// would produce. BestStreak never decreases over the record's lifetime.
type StreakRecord struct {
	TaskID             string     `json:"task_id" db:"task_id"`
	CurrentStreak      int        `json:"current_streak" db:"current_streak"`
	BestStreak         int        `json:"best_streak" db:"best_streak"`
	LastCompletionDate *time.Time `json:"last_completion_date,omitempty" db:"last_completion_date"`
	StreakStartDate    *time.Time `json:"streak_start_date,omitempty" db:"streak_start_date"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

func NewStreakRecord(taskID string, firstDay time.Time) *StreakRecord {
	day := DayOf(firstDay)
	return &StreakRecord{
		TaskID:             taskID,
		CurrentStreak:      1,
		BestStreak:         1,
		LastCompletionDate: &day,
		StreakStartDate:    &day,
		UpdatedAt:          time.Now().UTC(),
	}
}

// StreakStatus is the liveness view of a record as of an explicit date.
// CurrentStreak reads 0 for a lapsed streak even before the daily sweep
// has persisted the reset.
type StreakStatus struct {
	TaskID         string `json:"task_id"`
	IsActive       bool   `json:"is_active"`
	IsAtRisk       bool   `json:"is_at_risk"`
	CurrentStreak  int    `json:"current_streak"`
	BestStreak     int    `json:"best_streak"`
	DaysUntilBreak int    `json:"days_until_break"`
}

// AtRiskStreak is one entry of the bulk at-risk query consumed by
// reminder scheduling.
type AtRiskStreak struct {
	TaskID         string           `json:"task_id"`
	Title          string           `json:"title"`
	CurrentStreak  int              `json:"current_streak"`
	DaysUntilBreak int              `json:"days_until_break"`
	Priority       ReminderPriority `json:"priority"`
}
