package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/services"
)

func TestGetWeeklySummary(t *testing.T) {
	ctx := context.Background()

	tasks := NewMockTaskRepo()
	logs := NewMockLogRepo()
	svc := services.NewSummaryService(tasks, logs)

	task, err := domain.NewTask("Pushups", "", "", domain.StreakPolicy{Enabled: true, MinimumCount: 2})
	require.NoError(t, err)
	require.NoError(t, tasks.Create(ctx, task))

	// Mon..Sun of the first week of 2024: qualifies Mon and Wed only.
	require.NoError(t, logs.Upsert(ctx, domain.NewCompletionLog(task.ID, day(1), 2)))
	require.NoError(t, logs.Upsert(ctx, domain.NewCompletionLog(task.ID, day(2), 1)))
	require.NoError(t, logs.Upsert(ctx, domain.NewCompletionLog(task.ID, day(3), 3)))

	summary, err := svc.GetWeeklySummary(ctx, day(1), day(7))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", summary.StartDate)
	assert.Equal(t, "2024-01-07", summary.EndDate)
	assert.Equal(t, 1, summary.TotalTasks)
	require.Len(t, summary.Tasks, 1)

	ts := summary.Tasks[0]
	assert.Equal(t, task.ID, ts.TaskID)
	assert.Equal(t, 6, ts.TotalCount)
	assert.Equal(t, 2, ts.DaysQualified)
	assert.Equal(t, []int{2, 1, 3, 0, 0, 0, 0}, ts.DailyCounts)
	assert.InDelta(t, 2.0/7.0*100, ts.QualifiedRate, 0.01)
	assert.InDelta(t, 2.0/7.0*100, summary.OverallRate, 0.01)
}

func TestGetWeeklySummary_NoTasks(t *testing.T) {
	ctx := context.Background()
	svc := services.NewSummaryService(NewMockTaskRepo(), NewMockLogRepo())

	summary, err := svc.GetWeeklySummary(ctx, day(1), day(7))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalTasks)
	assert.Equal(t, 0.0, summary.OverallRate)
	assert.Empty(t, summary.Tasks)
}
