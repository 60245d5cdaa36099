// Package keepalive pings the database on a cron schedule so a sleeping
// managed instance does not go idle.
package keepalive

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/adhocore/gronx"
	"github.com/vedran77/onionparts/internal/metrics"
)

// PingFunc performs one keep-alive round trip.
type PingFunc func(ctx context.Context) error

type Scheduler struct {
	expr  string
	ping  PingFunc
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New validates expr and returns a scheduler that calls ping at every tick
// of expr. An empty expr disables the schedule.
func New(expr string, ping PingFunc) (*Scheduler, error) {
	if expr != "" && !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid keep-alive cron expression %q", expr)
	}
	return &Scheduler{
		expr:  expr,
		ping:  ping,
		now:   time.Now,
		after: time.After,
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.expr == "" {
		log.Println("keepalive: schedule disabled")
		<-ctx.Done()
		return nil
	}

	log.Printf("keepalive: scheduled %q", s.expr)
	for {
		wait, err := s.untilNext()
		if err != nil {
			log.Printf("ERROR keepalive next tick: %v", err)
			wait = 30 * time.Second
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(wait):
		}

		if err == nil {
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) untilNext() (time.Duration, error) {
	now := s.now().UTC()
	next, err := gronx.NextTickAfter(s.expr, now, false)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.ping(pingCtx); err != nil {
		metrics.KeepAliveFailures.Inc()
		log.Printf("ERROR keepalive ping: %v", err)
	}
}
