// Package admission decides whether an update may reach the DNS provider.
//
// A Gate owns two tables keyed by domain name: when the name was last
// admitted and which address it was last admitted with. Both live only in
// memory and are lost on restart.
package admission

import (
	"sync"
	"time"

	"github.com/ggrandes/jupdate53/internal/domain"
)

// DefaultFreshWindow is the minimum time between two admitted updates of a name.
const DefaultFreshWindow = 30 * time.Second

// Reason explains a rejection. Its text is part of the "SKIP:<reason>" status.
type Reason string

const (
	ReasonNotWhitelisted Reason = "NOT_WHITELISTED"
	ReasonTooFast        Reason = "TOO_FAST"
	ReasonAlreadyUpdated Reason = "ALREADY_UPDATED"
)

// Rejection is returned by Evaluate when an update is not admitted.
type Rejection struct {
	Reason Reason
	Name   string // first name that failed the check
}

func (r *Rejection) Error() string {
	return "update rejected: " + string(r.Reason) + " (" + r.Name + ")"
}

// Code is the status code sent back to the client, e.g. "SKIP:TOO_FAST".
func (r *Rejection) Code() string {
	return "SKIP:" + string(r.Reason)
}

// Gate is safe for concurrent use.
type Gate struct {
	whitelist   domain.Whitelist
	freshWindow time.Duration
	now         func() time.Time

	tsMu       sync.Mutex
	lastUpdate map[string]time.Time

	valMu     sync.Mutex
	lastValue map[string]string
}

// Option configures a Gate.
type Option func(*Gate)

// WithFreshWindow overrides DefaultFreshWindow.
func WithFreshWindow(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.freshWindow = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a gate over an immutable whitelist.
func NewGate(wl domain.Whitelist, opts ...Option) *Gate {
	if wl == nil {
		wl = domain.Whitelist{}
	}
	g := &Gate{
		whitelist:   wl,
		freshWindow: DefaultFreshWindow,
		now:         time.Now,
		lastUpdate:  make(map[string]time.Time),
		lastValue:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FreshWindow returns the configured freshness window.
func (g *Gate) FreshWindow() time.Duration { return g.freshWindow }

// Whitelist returns the whitelist the gate checks against.
func (g *Gate) Whitelist() domain.Whitelist { return g.whitelist }

// Evaluate returns nil when the update for names may proceed, or a *Rejection.
//
// Checks run in order: whitelist (no side effects), freshness, then
// idempotence. The last two scan names sequentially under their table lock
// and stop at the first offending name; names scanned before it keep their
// new timestamp or value. Admission is recorded even if the provider call
// that follows fails.
func (g *Gate) Evaluate(names []string, ip, zoneID string) error {
	for _, name := range names {
		if z, ok := g.whitelist.ZoneFor(name); !ok || z != zoneID {
			return &Rejection{Reason: ReasonNotWhitelisted, Name: name}
		}
	}

	if name, ok := g.touch(names); !ok {
		return &Rejection{Reason: ReasonTooFast, Name: name}
	}

	if name, ok := g.record(names, ip); !ok {
		return &Rejection{Reason: ReasonAlreadyUpdated, Name: name}
	}

	return nil
}

// touch stamps each name with now unless it was admitted less than
// freshWindow ago. It returns the offending name on failure.
func (g *Gate) touch(names []string) (string, bool) {
	g.tsMu.Lock()
	defer g.tsMu.Unlock()

	now := g.now()
	for _, name := range names {
		if last, ok := g.lastUpdate[name]; ok && now.Sub(last) < g.freshWindow {
			return name, false
		}
		g.lastUpdate[name] = now
	}
	return "", true
}

// record stores ip as the applied value for each name unless it already is.
func (g *Gate) record(names []string, ip string) (string, bool) {
	g.valMu.Lock()
	defer g.valMu.Unlock()

	for _, name := range names {
		if last, ok := g.lastValue[name]; ok && last == ip {
			return name, false
		}
		g.lastValue[name] = ip
	}
	return "", true
}

// Len reports how many names currently have throttle state.
func (g *Gate) Len() int {
	g.tsMu.Lock()
	defer g.tsMu.Unlock()
	return len(g.lastUpdate)
}
