package updater

import (
	"context"
	"time"

	"github.com/ggrandes/jupdate53/internal/domain"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// ChangeClient is the DNS provider contract the updater depends on.
type ChangeClient interface {
	SubmitChangeBatch(ctx context.Context, zoneID string, changes []domain.Change) (domain.ChangeInfo, error)
	GetChangeStatus(ctx context.Context, changeID string) (domain.ChangeStatus, error)
}

// DefaultWaitBudget bounds how long Apply polls for convergence.
const DefaultWaitBudget = 60 * time.Second

// Delay schedule while polling: 1s, 2s, 4s, then 5s.
const (
	minPollDelay = 1 * time.Second
	maxPollDelay = 5 * time.Second
)

// Updater submits record changes and optionally waits for them to propagate.
type Updater struct {
	client   ChangeClient
	budget   time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
	observer func(status domain.ChangeStatus, waited time.Duration)
}

// Option configures an Updater.
type Option func(*Updater)

// WithWaitBudget overrides DefaultWaitBudget.
func WithWaitBudget(d time.Duration) Option {
	return func(u *Updater) {
		if d > 0 {
			u.budget = d
		}
	}
}

// WithSleep replaces the context-aware sleep used between polls.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(u *Updater) {
		if fn != nil {
			u.sleep = fn
		}
	}
}

// WithObserver registers a callback invoked when a wait finishes.
func WithObserver(fn func(status domain.ChangeStatus, waited time.Duration)) Option {
	return func(u *Updater) {
		u.observer = fn
	}
}

// New creates an Updater. client must be safe for concurrent use.
func New(client ChangeClient, log zerolog.Logger, opts ...Option) *Updater {
	u := &Updater{
		client: client,
		budget: DefaultWaitBudget,
		sleep:  sleep,
		log:    log,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// BuildChanges returns one A-record UPSERT per name, in order.
func BuildChanges(names []string, ttl int64, ip string) []domain.Change {
	changes := make([]domain.Change, 0, len(names))
	for _, n := range names {
		changes = append(changes, domain.Change{
			Action:     domain.ActionUpsert,
			RecordType: domain.RecordTypeA,
			Name:       dns.Fqdn(n),
			TTL:        ttl,
			Value:      ip,
		})
	}
	return changes
}

// Apply submits req as a single change batch. Without wait it returns the
// status reported by the submit call. With wait it polls until the change is
// INSYNC or the wait budget is used up, in which case PENDING is returned.
// Provider errors are not retried; they come back with StatusError.
// Cancelling ctx while waiting abandons the wait with PENDING.
func (u *Updater) Apply(ctx context.Context, req domain.UpdateRequest, wait bool) (domain.ChangeStatus, error) {
	changes := BuildChanges(req.Names, req.TTL, req.IP)
	for _, c := range changes {
		u.log.Info().
			Str("zone_id", req.ZoneID).
			Str("name", c.Name).
			Str("type", c.RecordType).
			Int64("ttl", c.TTL).
			Str("value", c.Value).
			Msg("update record")
	}

	info, err := u.client.SubmitChangeBatch(ctx, req.ZoneID, changes)
	if err != nil {
		return domain.StatusError, err
	}
	if !wait {
		return info.Status, nil
	}

	return u.waitInSync(ctx, info.ID)
}

func (u *Updater) waitInSync(ctx context.Context, changeID string) (domain.ChangeStatus, error) {
	var waited time.Duration
	for i := 0; waited < u.budget; i++ {
		status, err := u.client.GetChangeStatus(ctx, changeID)
		if err != nil {
			if ctx.Err() != nil {
				u.log.Warn().Str("change_id", changeID).Err(err).Msg("wait for sync abandoned")
				u.observe(domain.StatusPending, waited)
				return domain.StatusPending, nil
			}
			return domain.StatusError, err
		}
		u.log.Debug().Str("change_id", changeID).Str("status", string(status)).Int("poll", i).Msg("change status")
		if status == domain.StatusInSync {
			u.observe(domain.StatusInSync, waited)
			return domain.StatusInSync, nil
		}

		d := pollDelay(i)
		if err := u.sleep(ctx, d); err != nil {
			u.log.Warn().Str("change_id", changeID).Err(err).Msg("wait for sync abandoned")
			u.observe(domain.StatusPending, waited)
			return domain.StatusPending, nil
		}
		waited += d
	}

	u.log.Info().Str("change_id", changeID).Dur("waited", waited).Msg("change still pending after wait budget")
	u.observe(domain.StatusPending, waited)
	return domain.StatusPending, nil
}

func (u *Updater) observe(status domain.ChangeStatus, waited time.Duration) {
	if u.observer != nil {
		u.observer(status, waited)
	}
}

// pollDelay is max(1s, i*2s) capped at 5s.
func pollDelay(i int) time.Duration {
	d := time.Duration(i) * 2 * time.Second
	if d < minPollDelay {
		d = minPollDelay
	}
	if d > maxPollDelay {
		d = maxPollDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
