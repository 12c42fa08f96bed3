package gateway

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/votepay/backend/internal/config"
	"github.com/votepay/backend/internal/models"
)

const (
	maxDeliveryAttempts = 5
	retryBaseDelay      = 2 * time.Second
	notifyTimeout       = 10 * time.Second

	// sessions are kept this long after their expiry or settlement so late
	// verifications, redeliveries and replays still find them
	defaultSessionRetention = 10 * time.Minute
)

// protocol carries the provider-specific parts of a simulated gateway
type protocol interface {
	txPrefix() string
	prepare(req InitRequest, s *session) (accepted bool, action NextAction, reason string, err error)
	webhookBody(s *session) ([]byte, error)
}

type session struct {
	reference    string
	providerTxID string
	amount       decimal.Decimal
	currency     string
	buyer        models.Buyer
	status       models.TransactionStatus
	createdAt    time.Time
	expiresAt    time.Time
	result       *InitResult
	timer        Timer
	attempts     int
	notified     bool
	timedOut     bool
}

// Simulator is a sandboxed provider. It accepts a payment, waits for a
// simulated latency, settles it according to its OutcomeModel and notifies
// the webhook endpoint, redelivering on failure.
type Simulator struct {
	id        string
	ttl       time.Duration
	retention time.Duration
	proto     protocol
	clock     Clock
	outcomes  OutcomeModel
	latency   LatencyModel
	notifier  Notifier

	mu       sync.Mutex
	sessions map[string]*session
	forced   map[string]Outcome
	down     bool
}

type Option func(*Simulator)

func WithClock(c Clock) Option               { return func(s *Simulator) { s.clock = c } }
func WithOutcomeModel(m OutcomeModel) Option { return func(s *Simulator) { s.outcomes = m } }
func WithLatency(m LatencyModel) Option      { return func(s *Simulator) { s.latency = m } }
func WithNotifier(n Notifier) Option         { return func(s *Simulator) { s.notifier = n } }
func WithRetention(d time.Duration) Option   { return func(s *Simulator) { s.retention = d } }

func newSimulator(cfg config.ProviderConfig, proto protocol, opts ...Option) *Simulator {
	seed := uint64(time.Now().UnixNano())
	s := &Simulator{
		id:        cfg.ID,
		ttl:       cfg.SessionTTL,
		retention: defaultSessionRetention,
		proto:     proto,
		clock:     RealClock(),
		outcomes:  NewProbabilisticOutcome(cfg.SuccessRate, cfg.AbandonRate, seed),
		latency:   NewUniformLatency(cfg.MinLatency, cfg.MaxLatency, seed+1),
		notifier:  logNotifier{},
		sessions:  make(map[string]*session),
		forced:    make(map[string]Outcome),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) ID() string                { return s.id }
func (s *Simulator) SessionTTL() time.Duration { return s.ttl }

// SetNotifier swaps the delivery strategy; used once wiring is complete
func (s *Simulator) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// ForceOutcome pins the outcome for one reference. Sandbox use only; it is
// deliberately absent from the Gateway interface.
func (s *Simulator) ForceOutcome(reference string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[reference] = outcome
}

// SetDown toggles simulated availability
func (s *Simulator) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *Simulator) CheckHealth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return ErrProviderDown
	}
	return nil
}

func (s *Simulator) InitializePayment(ctx context.Context, req InitRequest) (*InitResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return nil, ErrProviderDown
	}
	if existing, ok := s.sessions[req.Reference]; ok {
		return existing.result, nil
	}

	now := s.clock.Now()
	sess := &session{
		reference:    req.Reference,
		providerTxID: s.proto.txPrefix() + randomHex(8),
		amount:       req.Amount,
		currency:     req.Currency,
		buyer:        req.Buyer,
		status:       models.StatusPending,
		createdAt:    now,
		expiresAt:    now.Add(s.ttl),
	}

	accepted, action, reason, err := s.proto.prepare(req, sess)
	if err != nil {
		return nil, err
	}
	sess.result = &InitResult{
		Accepted:     accepted,
		NextAction:   action,
		ProviderTxID: sess.providerTxID,
		Reason:       reason,
	}
	s.sessions[req.Reference] = sess

	if !accepted {
		sess.status = models.StatusFailed
		s.scheduleCleanup(sess, 0)
		log.Printf("[GATEWAY] %s declined %s upfront: %s", s.id, req.Reference, reason)
		return sess.result, nil
	}

	outcome, ok := s.forced[req.Reference]
	if ok {
		delete(s.forced, req.Reference)
	} else {
		outcome = s.outcomes.Decide(req)
	}
	log.Printf("[GATEWAY] %s session %s opened (%s), outcome=%s", s.id, req.Reference, sess.providerTxID, outcome)

	if outcome == OutcomeAbandon {
		s.scheduleCleanup(sess, s.ttl)
		return sess.result, nil
	}

	delay := s.latency.Delay()
	sess.timer = s.clock.AfterFunc(delay, func() { s.settle(req.Reference, outcome) })
	s.scheduleCleanup(sess, max(s.ttl, delay))
	return sess.result, nil
}

// scheduleCleanup forgets the session retention after horizon. Callers hold s.mu.
func (s *Simulator) scheduleCleanup(sess *session, horizon time.Duration) {
	reference := sess.reference
	s.clock.AfterFunc(horizon+s.retention, func() { s.forget(reference) })
}

func (s *Simulator) forget(reference string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[reference]
	if !ok {
		return
	}
	if sess.timer != nil {
		sess.timer.Stop()
	}
	delete(s.sessions, reference)
	delete(s.forced, reference)
}

// SessionCount reports how many sessions the simulator still holds
func (s *Simulator) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// settle is the simulated buyer acting on the session
func (s *Simulator) settle(reference string, outcome Outcome) {
	s.mu.Lock()
	sess, ok := s.sessions[reference]
	if !ok || sess.status != models.StatusPending {
		s.mu.Unlock()
		return
	}
	switch {
	case s.clock.Now().After(sess.expiresAt):
		sess.status = models.StatusFailed
		sess.timedOut = true
	case outcome == OutcomeApprove:
		sess.status = models.StatusSuccess
	default:
		sess.status = models.StatusFailed
	}
	s.mu.Unlock()

	s.deliver(reference)
}

// deliver sends the session's webhook and reschedules with backoff on failure
func (s *Simulator) deliver(reference string) {
	s.mu.Lock()
	sess, ok := s.sessions[reference]
	if !ok {
		s.mu.Unlock()
		return
	}
	body, err := s.proto.webhookBody(sess)
	sess.attempts++
	attempt := sess.attempts
	notifier := s.notifier
	s.mu.Unlock()

	if err != nil {
		log.Printf("[GATEWAY] %s failed to encode webhook for %s: %v", s.id, reference, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	err = notifier.Notify(ctx, s.id, body)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		sess.notified = true
		return
	}

	log.Printf("[GATEWAY] %s webhook delivery %d for %s failed: %v", s.id, attempt, reference, err)
	if attempt >= maxDeliveryAttempts {
		return
	}
	backoff := retryBaseDelay << (attempt - 1)
	sess.timer = s.clock.AfterFunc(backoff, func() { s.deliver(reference) })
}

func (s *Simulator) VerifyPayment(ctx context.Context, reference string) (models.TransactionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[reference]
	if !ok {
		return "", ErrUnknownReference
	}
	if sess.status == models.StatusPending && s.clock.Now().After(sess.expiresAt) {
		sess.status = models.StatusFailed
		sess.timedOut = true
		if sess.timer != nil {
			sess.timer.Stop()
		}
	}
	return sess.status, nil
}

// ReplayWebhook resends the notification for a settled session
func (s *Simulator) ReplayWebhook(ctx context.Context, reference string) error {
	s.mu.Lock()
	sess, ok := s.sessions[reference]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownReference
	}
	if sess.status == models.StatusPending {
		s.mu.Unlock()
		return fmt.Errorf("gateway: session %s has not settled", reference)
	}
	body, err := s.proto.webhookBody(sess)
	notifier := s.notifier
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return notifier.Notify(ctx, s.id, body)
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return fmt.Sprintf("%X", b)
}
