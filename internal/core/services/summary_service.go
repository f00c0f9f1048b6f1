package services

import (
	"context"
	"time"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

// SummaryService produces the weekly completion view the mobile UI
// renders under the streak counters: per-task daily counts and how many
// days met the streak minimum.
type SummaryService struct {
	taskRepo domain.TaskRepository
	logRepo  domain.CompletionLogRepository
}

func NewSummaryService(taskRepo domain.TaskRepository, logRepo domain.CompletionLogRepository) *SummaryService {
	return &SummaryService{
		taskRepo: taskRepo,
		logRepo:  logRepo,
	}
}

type WeeklySummary struct {
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
	TotalTasks  int           `json:"total_tasks"`
	OverallRate float64       `json:"overall_completion_rate"`
	Tasks       []TaskSummary `json:"tasks"`
}

type TaskSummary struct {
	TaskID        string  `json:"task_id"`
	Title         string  `json:"title"`
	Color         string  `json:"color"`
	Icon          string  `json:"icon"`
	MinimumCount  int     `json:"minimum_count"`
	TotalCount    int     `json:"total_count"`
	DaysQualified int     `json:"days_qualified"`
	QualifiedRate float64 `json:"qualified_rate"`
	DailyCounts   []int   `json:"daily_counts"`
}

func (s *SummaryService) GetWeeklySummary(ctx context.Context, startDate, endDate time.Time) (*WeeklySummary, error) {
	start := domain.DayOf(startDate)
	end := domain.DayOf(endDate)

	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &WeeklySummary{
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		TotalTasks: len(tasks),
		Tasks:      make([]TaskSummary, 0, len(tasks)),
	}

	totalDaysPossible := 0
	totalDaysQualified := 0

	for _, t := range tasks {
		logs, err := s.logRepo.ListByDateRange(ctx, t.ID, start, end)
		if err != nil {
			return nil, err
		}

		countByDay := make(map[string]int, len(logs))
		for _, l := range logs {
			countByDay[domain.DayOf(l.Date).Format("2006-01-02")] = l.Count
		}

		tSummary := TaskSummary{
			TaskID:       t.ID,
			Title:        t.Title,
			Color:        t.Color,
			Icon:         t.Icon,
			MinimumCount: t.Streak.MinimumCount,
			DailyCounts:  make([]int, 0),
		}

		daysInPeriod := 0
		daysQualified := 0

		currentDate := start
		for !currentDate.After(end) {
			val := countByDay[currentDate.Format("2006-01-02")]

			tSummary.TotalCount += val
			tSummary.DailyCounts = append(tSummary.DailyCounts, val)

			if val >= t.Streak.MinimumCount {
				daysQualified++
				totalDaysQualified++
			}

			daysInPeriod++
			totalDaysPossible++

			currentDate = currentDate.AddDate(0, 0, 1)
		}

		tSummary.DaysQualified = daysQualified
		if daysInPeriod > 0 {
			tSummary.QualifiedRate = float64(daysQualified) / float64(daysInPeriod) * 100
		}

		summary.Tasks = append(summary.Tasks, tSummary)
	}

	if totalDaysPossible > 0 {
		summary.OverallRate = float64(totalDaysQualified) / float64(totalDaysPossible) * 100
	}

	return summary, nil
}
