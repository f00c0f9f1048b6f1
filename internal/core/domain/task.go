package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTaskTitleEmpty   = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong = errors.New("task title is too long (max 100 chars)")
	ErrInvalidColor     = errors.New("invalid color format (must be #RRGGBB)")
	ErrInvalidSkipDays  = errors.New("invalid skip days (must be 0-6)")
	ErrInvalidMinimum   = errors.New("streak minimum count must be at least 1")
	ErrAllDaysSkipped   = errors.New("streak policy skips every day of the week")
	ErrTaskArchived     = errors.New("cannot update an archived task")
)

var colorRegex = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

const (
	DefaultIcon = "default_icon"
	MaxTitleLen = 100
)

// StreakPolicy is the per-task rule set the streak engine evaluates.
// A day is "applicable" unless the policy skips it; a day "qualifies"
// when its logged count meets MinimumCount.
type StreakPolicy struct {
	Enabled      bool  `json:"enabled"`
	MinimumCount int   `json:"minimum_count"`
	SkipWeekends bool  `json:"skip_weekends"`
	SkipDays     []int `json:"skip_days,omitempty"`
}

// Skips reports whether the policy excludes the given weekday.
func (p StreakPolicy) Skips(d time.Weekday) bool {
	if p.SkipWeekends && (d == time.Saturday || d == time.Sunday) {
		return true
	}
	for _, skip := range p.SkipDays {
		if time.Weekday(skip) == d {
			return true
		}
	}
	return false
}

func (p StreakPolicy) validate() error {
	if p.MinimumCount < 1 {
		return ErrInvalidMinimum
	}
	for _, day := range p.SkipDays {
		if day < 0 || day > 6 {
			return ErrInvalidSkipDays
		}
	}
	if p.Enabled {
		applicable := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			if !p.Skips(d) {
				applicable = true
				break
			}
		}
		if !applicable {
			return ErrAllDaysSkipped
		}
	}
	return nil
}

type Task struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Color      string       `json:"color"`
	Icon       string       `json:"icon"`
	Streak     StreakPolicy `json:"streak"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	ArchivedAt *time.Time   `json:"archived_at,omitempty"`
}

func normalizeSkipDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}

	uniqueMap := make(map[int]bool)
	var uniqueDays []int
	for _, d := range days {
		if !uniqueMap[d] {
			uniqueMap[d] = true
			uniqueDays = append(uniqueDays, d)
		}
	}

	sort.Ints(uniqueDays)
	return uniqueDays
}

func validateTask(title, color string, policy StreakPolicy) error {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return ErrTaskTitleEmpty
	}
	if len(trimmedTitle) > MaxTitleLen {
		return ErrTaskTitleTooLong
	}

	if color != "" && !colorRegex.MatchString(color) {
		return ErrInvalidColor
	}

	return policy.validate()
}

func NewTask(title, color, icon string, policy StreakPolicy) (*Task, error) {
	if policy.MinimumCount < 1 {
		policy.MinimumCount = 1
	}
	policy.SkipDays = normalizeSkipDays(policy.SkipDays)

	if err := validateTask(title, color, policy); err != nil {
		return nil, err
	}

	if icon == "" {
		icon = DefaultIcon
	}

	now := time.Now().UTC()

	return &Task{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(title),
		Color:     color,
		Icon:      icon,
		Streak:    policy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Task) Update(title, color, icon string, policy StreakPolicy) error {
	if t.ArchivedAt != nil {
		return ErrTaskArchived
	}

	policy.SkipDays = normalizeSkipDays(policy.SkipDays)

	if err := validateTask(title, color, policy); err != nil {
		return err
	}

	if icon == "" {
		icon = DefaultIcon
	}

	t.Title = strings.TrimSpace(title)
	t.Color = color
	t.Icon = icon
	t.Streak = policy
	t.UpdatedAt = time.Now().UTC()

	return nil
}

func (t *Task) Archive() {
	if t.ArchivedAt != nil {
		return
	}

	now := time.Now().UTC()
	t.ArchivedAt = &now
	t.UpdatedAt = now
}

func (t *Task) Restore() {
	if t.ArchivedAt == nil {
		return
	}
	t.ArchivedAt = nil
	t.UpdatedAt = time.Now().UTC()
}
