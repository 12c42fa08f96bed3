package gateway

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Outcome is what a simulated buyer eventually does with a payment session
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeDecline Outcome = "decline"
	OutcomeAbandon Outcome = "abandon"
)

// OutcomeModel decides how a simulated session ends
type OutcomeModel interface {
	Decide(req InitRequest) Outcome
}

// LatencyModel decides how long the simulated provider takes to notify
type LatencyModel interface {
	Delay() time.Duration
}

// lockedRand is a goroutine-safe wrapper; *rand.Rand is not
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed uint64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

// ProbabilisticOutcome approves with SuccessRate, abandons with AbandonRate
// and declines otherwise.
type ProbabilisticOutcome struct {
	SuccessRate float64
	AbandonRate float64
	rnd         *lockedRand
}

func NewProbabilisticOutcome(successRate, abandonRate float64, seed uint64) *ProbabilisticOutcome {
	return &ProbabilisticOutcome{
		SuccessRate: successRate,
		AbandonRate: abandonRate,
		rnd:         newLockedRand(seed),
	}
}

func (p *ProbabilisticOutcome) Decide(InitRequest) Outcome {
	roll := p.rnd.Float64()
	switch {
	case roll < p.SuccessRate:
		return OutcomeApprove
	case roll < p.SuccessRate+p.AbandonRate:
		return OutcomeAbandon
	default:
		return OutcomeDecline
	}
}

// FixedOutcome always returns the same outcome
type FixedOutcome Outcome

func (f FixedOutcome) Decide(InitRequest) Outcome { return Outcome(f) }

// UniformLatency draws delays uniformly from [Min, Max]
type UniformLatency struct {
	Min time.Duration
	Max time.Duration
	rnd *lockedRand
}

func NewUniformLatency(min, max time.Duration, seed uint64) *UniformLatency {
	if max < min {
		max = min
	}
	return &UniformLatency{Min: min, Max: max, rnd: newLockedRand(seed)}
}

func (u *UniformLatency) Delay() time.Duration {
	span := int64(u.Max - u.Min)
	if span <= 0 {
		return u.Min
	}
	return u.Min + time.Duration(u.rnd.Int64N(span+1))
}

// FixedLatency always waits the same duration
type FixedLatency time.Duration

func (f FixedLatency) Delay() time.Duration { return time.Duration(f) }
