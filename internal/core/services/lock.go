package services

import "sync"

// taskLocker serializes mutating streak operations per task. Interleaved
// fast-path increments on the same task would otherwise lose updates;
// different tasks proceed concurrently. The map grows with the set of
// touched tasks, which is bounded by the user's task list.
type taskLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTaskLocker() *taskLocker {
	return &taskLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *taskLocker) forTask(taskID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[taskID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[taskID] = m
	}
	return m
}
