package domain

// ReminderPriority ranks how loudly the reminder layer should nag about
// an at-risk streak. Longer streaks are more painful to lose.
type ReminderPriority string

const (
	PriorityNormal   ReminderPriority = "normal"
	PriorityElevated ReminderPriority = "elevated"
	PriorityHigh     ReminderPriority = "high"
	PriorityCritical ReminderPriority = "critical"
)

// priorityTiers is evaluated highest-threshold-first.
var priorityTiers = []struct {
	minStreak int
	priority  ReminderPriority
}{
	{100, PriorityCritical},
	{30, PriorityHigh},
	{7, PriorityElevated},
	{0, PriorityNormal},
}

// PriorityForStreak maps a streak length onto a reminder priority tier.
func PriorityForStreak(length int) ReminderPriority {
	for _, tier := range priorityTiers {
		if length >= tier.minStreak {
			return tier.priority
		}
	}
	return PriorityNormal
}
