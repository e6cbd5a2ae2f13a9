package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper closes sessions that have been idle longer than the configured
// timeout. The cadence comes from a standard five-field cron expression.
// Clients that disconnect without sending DELETE are reaped here.
type Sweeper struct {
	table       *Table
	idleTimeout time.Duration
	schedule    cron.Schedule
	onEvict     func(*Session)
	logger      zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates an idle-session sweeper. An idleTimeout of zero
// disables sweeping entirely.
func NewSweeper(table *Table, idleTimeout time.Duration, scheduleExpr string, onEvict func(*Session), logger zerolog.Logger) (*Sweeper, error) {
	if table == nil {
		return nil, fmt.Errorf("session table is required")
	}
	if idleTimeout < 0 {
		return nil, fmt.Errorf("idle timeout cannot be negative")
	}
	if scheduleExpr == "" {
		scheduleExpr = "* * * * *"
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(scheduleExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	return &Sweeper{
		table:       table,
		idleTimeout: idleTimeout,
		schedule:    schedule,
		onEvict:     onEvict,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start begins the sweep loop. No-op when the idle timeout is zero.
func (s *Sweeper) Start() {
	if s.idleTimeout == 0 {
		s.logger.Info().Msg("Idle session sweep disabled")
		return
	}

	s.wg.Add(1)
	go s.run()

	s.logger.Info().
		Dur("idle_timeout", s.idleTimeout).
		Msg("Idle session sweeper started")
}

// Stop terminates the sweep loop and waits for it to exit
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.SweepNow()
		}
	}
}

// SweepNow evicts every session idle longer than the timeout
func (s *Sweeper) SweepNow() int {
	now := time.Now()
	evicted := 0

	for _, session := range s.table.Snapshot() {
		idle := now.Sub(session.Transport.LastActive())
		if idle < s.idleTimeout {
			continue
		}

		session.Transport.Close()
		s.table.Remove(session.ID)
		evicted++

		s.logger.Info().
			Str("session", session.ID).
			Dur("idle", idle).
			Msg("Idle session evicted")

		if s.onEvict != nil {
			s.onEvict(session)
		}
	}

	return evicted
}
