package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
)

// Notifier delivers state-change notifications.  Delivery is best effort:
// callers log a returned error and move on.
type Notifier interface {
	Notify(ctx context.Context, n queue.Notification) error
}

// LogNotifier writes each notification to the standard logger.  It is the
// fallback when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n queue.Notification) error {
	log.Printf("notify: %s", queue.FormatLine(n))
	return nil
}

// MultiNotifier fans a notification out to every wrapped notifier and
// joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n queue.Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func notificationFor(kind queue.Kind, before, after model.JoinRequest) queue.Notification {
	return queue.Notification{
		Kind:          kind,
		EventID:       after.EventID,
		RequestID:     after.ID,
		UserID:        after.UserID,
		OldStatus:     string(before.Status),
		NewStatus:     string(after.Status),
		PartySize:     after.PartySize,
		HoldExpiresAt: after.HoldExpiresAt,
		WaitlistPos:   after.WaitlistPos,
		OccurredAt:    after.UpdatedAt,
	}
}

var transitionKinds = map[model.RequestStatus]queue.Kind{
	model.StatusApproved:   queue.KindRequestApproved,
	model.StatusDeclined:   queue.KindRequestDeclined,
	model.StatusWaitlisted: queue.KindRequestWaitlisted,
	model.StatusCancelled:  queue.KindRequestCancelled,
	model.StatusExpired:    queue.KindRequestExpired,
}

func transitionNotification(res *repository.TransitionResult) queue.Notification {
	kind, ok := transitionKinds[res.After.Status]
	if !ok || res.Before.Status == res.After.Status {
		kind = queue.KindHoldExtended
	}
	return notificationFor(kind, res.Before, res.After)
}

// dispatcher sends notifications after commit under their own deadline so a
// slow broker never holds up the caller's context.
type dispatcher struct {
	notifier Notifier
	timeout  time.Duration
}

func (d dispatcher) send(ctx context.Context, n queue.Notification) {
	if d.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, n); err != nil {
		log.Printf("notify: %s for request %s failed: %v", n.Kind, n.RequestID, err)
	}
}
