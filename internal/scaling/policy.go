package scaling

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Default policy values.
const (
	defaultMinConcurrency = 10
	defaultMaxConcurrency = 200
	defaultTargetDivisor  = 5
	defaultReservedShare  = 0.30
	defaultCooldownPeriod = 5 * time.Second
)

// Option configures a Policy.
type Option func(*Policy)

// WithMinConcurrency sets the smallest pool size a plan may produce.
func WithMinConcurrency(n int) Option {
	return func(p *Policy) { p.minConcurrency = n }
}

// WithMaxConcurrency sets the largest pool size a plan may produce.
func WithMaxConcurrency(n int) Option {
	return func(p *Policy) { p.maxConcurrency = n }
}

// WithTargetDivisor sets how many target units share one pool slot.
func WithTargetDivisor(n int) Option {
	return func(p *Policy) { p.targetDivisor = n }
}

// WithReservedShare sets the fraction of the pool reserved for one class.
func WithReservedShare(share float64) Option {
	return func(p *Policy) { p.reservedShare = share }
}

// WithCooldownPeriod sets the minimum time between resize decisions.
func WithCooldownPeriod(d time.Duration) Option {
	return func(p *Policy) { p.cooldownPeriod = d }
}

// WithClock overrides the time source used for the cooldown.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// Policy translates targets into pool plans. It is safe for concurrent use.
type Policy struct {
	mu               sync.Mutex
	minConcurrency   int
	maxConcurrency   int
	targetDivisor    int
	reservedShare    float64
	cooldownPeriod   time.Duration
	now              func() time.Time
	lastDecisionTime time.Time
}

// NewPolicy creates a Policy with the given options.
// Unset options use defaults.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		minConcurrency: defaultMinConcurrency,
		maxConcurrency: defaultMaxConcurrency,
		targetDivisor:  defaultTargetDivisor,
		reservedShare:  defaultReservedShare,
		cooldownPeriod: defaultCooldownPeriod,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.targetDivisor < 1 {
		p.targetDivisor = 1
	}
	if p.minConcurrency < 1 {
		p.minConcurrency = 1
	}
	if p.maxConcurrency < p.minConcurrency {
		p.maxConcurrency = p.minConcurrency
	}
	return p
}

// Concurrency returns min(max, max(min, target/divisor)).
func (p *Policy) Concurrency(target int) int {
	n := target / p.targetDivisor
	return min(p.maxConcurrency, max(p.minConcurrency, n))
}

// Reserved returns the reserved slot count for a pool of the given size:
// max(1, floor(concurrency × share)), never more than concurrency. A share
// of zero or less disables the reservation.
func (p *Policy) Reserved(concurrency int) int {
	return ReservedSlots(concurrency, p.reservedShare)
}

// Plan returns the pool plan for a target.
func (p *Policy) Plan(target int) Plan {
	c := p.Concurrency(target)
	return Plan{Concurrency: c, Reserved: p.Reserved(c)}
}

// Fixed returns the plan for an explicitly sized pool, bypassing the
// target bounds.
func (p *Policy) Fixed(concurrency int) Plan {
	concurrency = max(1, concurrency)
	return Plan{Concurrency: concurrency, Reserved: p.Reserved(concurrency)}
}

// ReservedSlots computes max(1, floor(concurrency × share)) capped at
// concurrency. A share of zero or less returns zero.
func ReservedSlots(concurrency int, share float64) int {
	if share <= 0 || concurrency < 1 {
		return 0
	}
	r := max(1, int(math.Floor(float64(concurrency)*share)))
	return min(r, concurrency)
}

// Evaluate compares next against the current pool size. The cooldown period
// prevents rapid resize thrash; a decision that changes nothing does not
// start a cooldown.
func (p *Policy) Evaluate(next Plan, current int) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if next.Concurrency == current {
		return Decision{Action: ActionNone, Plan: next, Reason: "pool already at target size"}
	}

	now := p.now()
	if !p.lastDecisionTime.IsZero() && now.Sub(p.lastDecisionTime) < p.cooldownPeriod {
		return Decision{
			Action: ActionNone,
			Plan:   Plan{Concurrency: current, Reserved: p.Reserved(current)},
			Reason: "cooldown period active",
		}
	}

	p.lastDecisionTime = now
	delta := next.Concurrency - current
	action := ActionScaleUp
	if delta < 0 {
		action = ActionScaleDown
	}
	return Decision{
		Action: action,
		Plan:   next,
		Delta:  delta,
		Reason: fmt.Sprintf("concurrency %d -> %d (reserved %d)", current, next.Concurrency, next.Reserved),
	}
}
