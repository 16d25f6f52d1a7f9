package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/event-capacity-reservation/internal/config"
	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
)

const sweepBatch = 500

// HoldSweeper releases lapsed capacity holds and warns guests whose hold is
// about to lapse.  Several instances may run against the same store: every
// expiry goes through the status-checked transition, and warnings are
// deduplicated.
type HoldSweeper struct {
	requests *repository.JoinRequestRepo
	notify   dispatcher
	dedupe   Deduper
	interval time.Duration
	lead     time.Duration
	batch    int
	now      func() time.Time

	scheduler gocron.Scheduler
}

// NewHoldSweeper builds a sweeper from the reservation policy.  A nil
// deduper falls back to an in-memory one.
func NewHoldSweeper(requests *repository.JoinRequestRepo, notifier Notifier, dedupe Deduper, cfg config.ReservationConfig) *HoldSweeper {
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	return &HoldSweeper{
		requests: requests,
		notify:   dispatcher{notifier: notifier, timeout: cfg.NotifyTimeout},
		dedupe:   dedupe,
		interval: cfg.SweepInterval,
		lead:     cfg.WarningLead,
		batch:    sweepBatch,
		now:      time.Now,
	}
}

// ExpireStaleHolds moves every pending request whose hold has lapsed to
// expired and returns how many it expired.  Stale holds are read in pages;
// a failing row is logged and left behind the cursor.  Requests decided
// concurrently are skipped.
func (s *HoldSweeper) ExpireStaleHolds(ctx context.Context) (int, error) {
	now := s.now()
	expired := 0
	var after *repository.HoldCursor
	for {
		stale, err := s.requests.ListStaleHolds(ctx, now, after, s.batch)
		if err != nil {
			return expired, fmt.Errorf("sweep: %w", err)
		}
		for _, r := range stale {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			res, err := s.requests.Transition(ctx, r.ID, model.StatusPending, model.StatusExpired, now)
			if err != nil {
				if !errors.Is(err, repository.ErrInvalidTransition) {
					log.Printf("sweeper: expire request %s: %v", r.ID, err)
				}
				continue
			}
			expired++
			s.notify.send(ctx, transitionNotification(res))
		}
		if len(stale) < s.batch {
			return expired, nil
		}
		after = repository.CursorAfter(stale[len(stale)-1])
	}
}

// WarnExpiringHolds announces hold.expiring_soon for every pending request
// whose hold ends within the warning lead.  Each (request, hold end) pair is
// announced once; extending a hold re-arms the warning.  The store is not
// modified.
func (s *HoldSweeper) WarnExpiringHolds(ctx context.Context) (int, error) {
	if s.lead <= 0 {
		return 0, nil
	}
	now := s.now()
	warned := 0
	var after *repository.HoldCursor
	for {
		soon, err := s.requests.ListExpiringHolds(ctx, now, now.Add(s.lead), after, s.batch)
		if err != nil {
			return warned, fmt.Errorf("warn: %w", err)
		}
		for _, r := range soon {
			key := fmt.Sprintf("hold-warning:%s:%d", r.ID, r.HoldExpiresAt.UnixMilli())
			first, err := s.dedupe.First(ctx, key, s.lead+time.Minute)
			if err != nil {
				log.Printf("sweeper: dedupe warning for %s: %v", r.ID, err)
				continue
			}
			if !first {
				continue
			}
			warned++
			n := notificationFor(queue.KindHoldExpiringSoon, r, r)
			n.OccurredAt = now.UTC()
			s.notify.send(ctx, n)
		}
		if len(soon) < s.batch {
			return warned, nil
		}
		after = repository.CursorAfter(soon[len(soon)-1])
	}
}

func (s *HoldSweeper) run() {
	ctx := context.Background()
	if n, err := s.ExpireStaleHolds(ctx); err != nil {
		log.Printf("sweeper: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: expired %d holds", n)
	}
	if _, err := s.WarnExpiringHolds(ctx); err != nil {
		log.Printf("sweeper: %v", err)
	}
}

// Start schedules the sweep every interval.  A sweep that overruns the
// interval delays the next one instead of overlapping it.
func (s *HoldSweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("new scheduler: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("hold-sweeper"),
	); err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sched.Start()
	s.scheduler = sched
	return nil
}

// Stop waits for a running sweep and stops the schedule.
func (s *HoldSweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
