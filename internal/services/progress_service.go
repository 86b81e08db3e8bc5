// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

const (
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// ProgressUpdate is one event pushed to subscribers.
type ProgressUpdate struct {
	TaskID   string `json:"taskId"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

// ProgressTracker follows one long running job such as a batch of
// character generations.
type ProgressTracker struct {
	TaskID     string
	Progress   int
	Message    string
	Status     string
	StartTime  time.Time
	UpdateTime time.Time

	subscribers map[chan ProgressUpdate]struct{}
	done        chan struct{}
	finished    bool
	mutex       sync.Mutex
}

// ProgressService keeps trackers by task id.
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

func NewProgressService() *ProgressService {
	return &ProgressService{trackers: make(map[string]*ProgressTracker)}
}

// CreateTracker returns the existing tracker for taskID or a new one.
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, ok := s.trackers[taskID]; ok {
		return tracker
	}

	now := time.Now()
	tracker := &ProgressTracker{
		TaskID:      taskID,
		Message:     "Starting...",
		Status:      ProgressRunning,
		StartTime:   now,
		UpdateTime:  now,
		subscribers: make(map[chan ProgressUpdate]struct{}),
		done:        make(chan struct{}),
	}
	s.trackers[taskID] = tracker
	return tracker
}

func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	tracker, ok := s.trackers[taskID]
	return tracker, ok
}

// CleanupCompletedTasks removes finished trackers older than maxAge.
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		stale := tracker.finished && now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()
		if stale {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}

func (t *ProgressTracker) snapshot() ProgressUpdate {
	return ProgressUpdate{TaskID: t.TaskID, Progress: t.Progress, Message: t.Message, Status: t.Status}
}

// broadcast drops the update for subscribers whose buffer is full.
func (t *ProgressTracker) broadcast() {
	update := t.snapshot()
	for ch := range t.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}

// UpdateProgress never moves progress backwards.
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.finished {
		return
	}

	if progress > 100 {
		progress = 100
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.broadcast()
}

func (t *ProgressTracker) Complete(message string) {
	t.finish(ProgressCompleted, 100, message, "Done")
}

func (t *ProgressTracker) Fail(errorMsg string) {
	t.finish(ProgressFailed, -1, fmt.Sprintf("Failed: %s", errorMsg), "")
}

func (t *ProgressTracker) finish(status string, progress int, message, fallback string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.finished {
		return
	}

	if progress >= 0 {
		t.Progress = progress
	}
	if message == "" {
		message = fallback
	}
	t.Message = message
	t.Status = status
	t.UpdateTime = time.Now()
	t.finished = true
	t.broadcast()
	close(t.done)
}

// Done is closed once the task completes or fails.
func (t *ProgressTracker) Done() <-chan struct{} {
	return t.done
}

// Snapshot returns the current state.
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.snapshot()
}

// Subscribe returns a buffered channel primed with the current state.
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	ch := make(chan ProgressUpdate, 10)
	ch <- t.snapshot()
	t.subscribers[ch] = struct{}{}
	return ch
}

func (t *ProgressTracker) Unsubscribe(ch chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.subscribers[ch]; ok {
		delete(t.subscribers, ch)
		close(ch)
	}
}
