package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidLog = errors.New("invalid completion log data")
)

// CompletionLog records how much activity was logged for a task on one
// calendar day. There is exactly one row per (task, day); re-logging the
// same day overwrites the count. A zero count is the deletion signal;
// rows are never implicitly removed.
type CompletionLog struct {
	TaskID    string    `json:"task_id" db:"task_id"`
	Date      time.Time `json:"date" db:"log_date"`
	Count     int       `json:"count" db:"count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func NewCompletionLog(taskID string, date time.Time, count int) *CompletionLog {
	now := time.Now().UTC()

	return &CompletionLog{
		TaskID:    taskID,
		Date:      DayOf(date),
		Count:     count,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (l *CompletionLog) Validate() error {
	if strings.TrimSpace(l.TaskID) == "" {
		return errors.New("task_id is required")
	}
	if l.Count < 0 {
		return errors.New("count cannot be negative")
	}
	if l.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

// DayOf truncates a timestamp to its UTC calendar day. All dates handled
// by the streak engine are normalized through this before comparison.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}
