// Package scheduler runs the periodic-task master loop and dispatches due
// scheduled notifications.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/log"
)

// tickInterval is how often the master loop wakes
const tickInterval = 30 * time.Second

// TaskRunner executes one task through the supervisor pipeline
type TaskRunner interface {
	RunTask(task db.Task)
}

// NotificationSender delivers one due scheduled notification
type NotificationSender interface {
	SendNotification(message, title string, color int, channelID string) error
}

// Scheduler wakes periodically, advances due tasks, and spawns their
// executions. An in-memory in-flight set prevents double-dispatch when a
// task outlives its interval.
type Scheduler struct {
	runner TaskRunner
	sender NotificationSender

	// Interval overrides tickInterval when non-zero (tests)
	Interval time.Duration

	mu       sync.Mutex
	inflight map[int64]bool

	stopOnce sync.Once
	stop     chan struct{}
}

func New(runner TaskRunner, sender NotificationSender) *Scheduler {
	return &Scheduler{
		runner:   runner,
		sender:   sender,
		inflight: make(map[int64]bool),
		stop:     make(chan struct{}),
	}
}

// Start launches the master loop
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = tickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("scheduler started")
}

// Stop halts the master loop. In-flight executions finish on their own.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Tick runs one scheduling pass
func (s *Scheduler) Tick() {
	s.dispatchTasks()
	s.dispatchNotifications()
}

func (s *Scheduler) dispatchTasks() {
	due, err := db.GetDueTasks(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("due task fetch failed")
		return
	}

	for _, task := range due {
		s.mu.Lock()
		if s.inflight[task.ID] {
			s.mu.Unlock()
			continue
		}
		s.inflight[task.ID] = true
		s.mu.Unlock()

		// Advance before dispatch so a re-fire within one interval is
		// impossible even if the execution is slow
		if err := db.AdvanceTaskNextRun(task.ID, task.IntervalSeconds); err != nil {
			log.Error().Err(err).Int64("task_id", task.ID).Msg("task advance failed")
			s.clearInflight(task.ID)
			continue
		}

		task := task
		go func() {
			defer s.clearInflight(task.ID)
			log.Info().Int64("task_id", task.ID).Str("name", task.Name).Msg("task dispatched")
			s.runner.RunTask(task)
		}()
	}
}

func (s *Scheduler) clearInflight(id int64) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// InFlight reports whether a task is currently executing
func (s *Scheduler) InFlight(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[id]
}

func (s *Scheduler) dispatchNotifications() {
	if s.sender == nil {
		return
	}

	due, err := db.GetDueNotifications(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("due notification fetch failed")
		return
	}

	for _, n := range due {
		if err := s.sender.SendNotification(n.Message, n.Title, n.Color, n.ChannelID); err != nil {
			log.Error().Err(err).Str("id", n.ID).Msg("notification send failed")
			continue
		}
		if err := db.MarkNotificationSent(n.ID); err != nil {
			log.Error().Err(err).Str("id", n.ID).Msg("notification mark failed")
		}
	}
}
