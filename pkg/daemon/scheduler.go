package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// idleWait is how long the loop sleeps when nothing is scheduled. A wake-up
// from Schedule or Skip ends the wait earlier.
const idleWait = time.Hour * 10000

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler runs Task on a cron schedule. PreCheck, when set, runs first and
// a failure skips that run. A stopped scheduler can be started again.
type Scheduler struct {
	OnError  NotifyFunc // called on precheck or task error
	Task     TaskFunc   // task callback
	PreCheck TaskFunc   // condition check callback

	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	nextRun  time.Time
	running  bool

	// Both are replaced on every Start, so a loop that is shutting down
	// never consumes a wake-up meant for its successor.
	wakeCh chan struct{}
	stopCh chan struct{}
}

func NewScheduler(task, preCheck TaskFunc, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		OnError:  onError,
		Task:     task,
		PreCheck: preCheck,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wakeCh = make(chan struct{}, 1)
	go s.runScheduled(s.stopCh, s.wakeCh)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// Schedule replaces the schedule. The next run is computed from now.
func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = sh
	s.nextRun = sh.Next(time.Now())
	s.wakeLocked()
	return nil
}

// Skip skips the next scheduled run and returns the new next run.
func (s *Scheduler) Skip() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.schedule == nil || s.nextRun.IsZero() {
		return time.Time{}, fmt.Errorf("no active schedule to skip")
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	s.wakeLocked()
	return s.nextRun, nil
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nextRun, s.running
}

func (s *Scheduler) runScheduled(stopCh, wakeCh chan struct{}) {
	logrus.Debug("scheduler started")
	defer logrus.Debug("scheduler stopped")

	for {
		schedule, nextRun := s.snapshot()
		wait := idleWait
		if schedule != nil && !nextRun.IsZero() {
			wait = time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
		}
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			if schedule == nil || nextRun.IsZero() {
				continue
			}
			if !s.due(nextRun) {
				// Moved by Skip or Schedule while the timer was firing.
				continue
			}
			logrus.Debugf("running scheduled analysis due at %s", nextRun.Format(time.DateTime))
			s.fire()
			s.advanceNextRun()
		case <-stopCh:
			timer.Stop()
			return
		case <-wakeCh:
			timer.Stop()
			logrus.Debug("schedule changed, recalculating timer")
		}
	}
}

func (s *Scheduler) fire() {
	if s.PreCheck != nil {
		if err := s.PreCheck(); err != nil {
			s.sendError(fmt.Errorf("precheck failed: %w", err))
			return
		}
	}

	go func() {
		if err := s.Task(); err != nil {
			s.sendError(fmt.Errorf("task failed: %w", err))
		}
	}()
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) due(expected time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun.Equal(expected)
}

// advanceNextRun moves to the first run after now, so runs missed while the
// machine slept are not replayed.
func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(time.Now())
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

// wakeLocked nudges the running loop to recompute its timer. s.mu must be held.
func (s *Scheduler) wakeLocked() {
	if !s.running {
		return
	}
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}
