package services

import (
	"context"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

// Recalculator is the slice of the streak engine the task lifecycle
// needs: policy edits change what the stored record means, so they
// schedule a rebuild.
type Recalculator interface {
	Enqueue(taskID string)
}

type TaskService struct {
	repo   domain.TaskRepository
	recalc Recalculator
}

func NewTaskService(repo domain.TaskRepository, recalc Recalculator) *TaskService {
	return &TaskService{
		repo:   repo,
		recalc: recalc,
	}
}

type CreateTaskInput struct {
	Title  string
	Color  string
	Icon   string
	Streak domain.StreakPolicy
}

type UpdateTaskInput struct {
	ID     string
	Title  string
	Color  string
	Icon   string
	Streak domain.StreakPolicy
}

func mergeString(newVal, oldVal string) string {
	if newVal == "" {
		return oldVal
	}
	return newVal
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	task, err := domain.NewTask(input.Title, input.Color, input.Icon, input.Streak)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}

	return task, nil
}

func (s *TaskService) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TaskService) ListAll(ctx context.Context) ([]*domain.Task, error) {
	return s.repo.ListAll(ctx)
}

func (s *TaskService) Update(ctx context.Context, input UpdateTaskInput) (*domain.Task, error) {
	task, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	title := mergeString(input.Title, task.Title)
	color := mergeString(input.Color, task.Color)
	icon := mergeString(input.Icon, task.Icon)

	policyChanged := !policiesEqual(task.Streak, input.Streak)

	if err := task.Update(title, color, icon, input.Streak); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	// A different minimum or skip set changes which history days qualify,
	// so the stored snapshot has to be rebuilt from the log.
	if policyChanged && s.recalc != nil {
		s.recalc.Enqueue(task.ID)
	}

	return task, nil
}

func (s *TaskService) Archive(ctx context.Context, id string) error {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	task.Archive()
	return s.repo.Update(ctx, task)
}

func (s *TaskService) Restore(ctx context.Context, id string) error {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	task.Restore()
	if err := s.repo.Update(ctx, task); err != nil {
		return err
	}

	// Completions may have kept arriving while archived was hidden from
	// the sweep; rebuild so the snapshot matches history again.
	if s.recalc != nil {
		s.recalc.Enqueue(task.ID)
	}
	return nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	// Logs and the streak record cascade in storage.
	return s.repo.Delete(ctx, id)
}

func policiesEqual(a, b domain.StreakPolicy) bool {
	if a.Enabled != b.Enabled || a.MinimumCount != b.MinimumCount || a.SkipWeekends != b.SkipWeekends {
		return false
	}
	if len(a.SkipDays) != len(b.SkipDays) {
		return false
	}
	for i := range a.SkipDays {
		if a.SkipDays[i] != b.SkipDays[i] {
			return false
		}
	}
	return true
}
