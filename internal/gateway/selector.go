package gateway

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/votepay/backend/internal/config"
	apperrors "github.com/votepay/backend/internal/errors"
)

// ProviderHealth is one row of the selector's health table
type ProviderHealth struct {
	ID        string    `json:"id"`
	Up        bool      `json:"up"`
	Default   bool      `json:"default"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
	// Manual marks a provider an operator took down; health checks never
	// bring it back up.
	Manual bool `json:"manual,omitempty"`
}

// Selector routes intents to a healthy gateway. The health table is explicit
// process state: loaded by Start, refreshed on an interval and torn down by Close.
type Selector struct {
	policy    string
	defaultID string
	order     []string
	gateways  map[string]Gateway
	clock     Clock
	onChange  func(id string, up bool)

	mu     sync.RWMutex
	health map[string]*ProviderHealth
	next   int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSelector registers gateways in the given order; all start healthy
func NewSelector(policy, defaultID string, gateways ...Gateway) *Selector {
	s := &Selector{
		policy:    policy,
		defaultID: defaultID,
		gateways:  make(map[string]Gateway),
		health:    make(map[string]*ProviderHealth),
		clock:     RealClock(),
	}
	for _, g := range gateways {
		s.order = append(s.order, g.ID())
		s.gateways[g.ID()] = g
		s.health[g.ID()] = &ProviderHealth{ID: g.ID(), Up: true, Default: g.ID() == defaultID}
	}
	return s
}

// OnHealthChange registers a callback invoked whenever a provider flips state
func (s *Selector) OnHealthChange(fn func(id string, up bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Gateway returns the adapter registered under id
func (s *Selector) Gateway(id string) (Gateway, bool) {
	g, ok := s.gateways[id]
	return g, ok
}

// Select picks a provider. With the primary policy the default wins while it
// is up and the first healthy provider in registration order otherwise; with
// round_robin healthy providers take turns.
func (s *Selector) Select() (Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var up []string
	for _, id := range s.order {
		if s.health[id].Up {
			up = append(up, id)
		}
	}
	if len(up) == 0 {
		return nil, apperrors.ErrNoProvider
	}

	if s.policy == config.SelectRoundRobin {
		id := up[s.next%len(up)]
		s.next++
		return s.gateways[id], nil
	}

	for _, id := range up {
		if id == s.defaultID {
			return s.gateways[id], nil
		}
	}
	return s.gateways[up[0]], nil
}

// SelectPreferred honors a caller's provider choice when that provider is up
func (s *Selector) SelectPreferred(id string) (Gateway, error) {
	if id == "" {
		return s.Select()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.health[id]
	if !ok {
		return nil, apperrors.ErrValidation.WithDetails("unknown provider " + id)
	}
	if !h.Up {
		return nil, apperrors.ErrNoProvider.WithDetails(id + " is down")
	}
	return s.gateways[id], nil
}

// SelectProvider is Select reduced to the provider id
func (s *Selector) SelectProvider() (string, error) {
	g, err := s.Select()
	if err != nil {
		return "", err
	}
	return g.ID(), nil
}

// SetHealth is the operator override. Taking a provider down holds it down
// across refreshes until SetHealth brings it back up.
func (s *Selector) SetHealth(id string, up bool, reason string) error {
	return s.update(id, up, reason, true)
}

func (s *Selector) update(id string, up bool, reason string, manual bool) error {
	s.mu.Lock()
	h, ok := s.health[id]
	if !ok {
		s.mu.Unlock()
		return apperrors.ErrNotFound.WithDetails("provider " + id)
	}
	h.CheckedAt = s.clock.Now()
	if manual {
		h.Manual = !up
	} else if h.Manual {
		s.mu.Unlock()
		return nil
	}
	changed := h.Up != up
	h.Up = up
	h.Error = reason
	onChange := s.onChange
	s.mu.Unlock()

	if changed {
		log.Printf("[GATEWAY] Provider %s health changed: up=%t %s", id, up, reason)
		if onChange != nil {
			onChange(id, up)
		}
	}
	return nil
}

// Health returns a snapshot of the health table sorted by id
func (s *Selector) Health() []ProviderHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(s.health))
	for _, h := range s.health {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Refresh polls every gateway that implements HealthChecker. Providers held
// down by an operator are left alone.
func (s *Selector) Refresh(ctx context.Context) {
	for _, id := range s.order {
		checker, ok := s.gateways[id].(HealthChecker)
		if !ok {
			continue
		}
		if err := checker.CheckHealth(ctx); err != nil {
			s.update(id, false, err.Error(), false)
		} else {
			s.update(id, true, "", false)
		}
	}
}

// Start loads health once and keeps refreshing it until Close
func (s *Selector) Start(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	if interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()
}

func (s *Selector) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
