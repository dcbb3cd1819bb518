// Package scaling sizes the worker pool and its reserved lane.
//
// A target concurrency (the number of units of work the fleet is expected
// to carry) is translated into a pool size bounded by minimum and maximum
// limits, and a reserved slot count derived from the reserved share. When
// configuration changes at runtime, Evaluate compares the new plan with the
// pool's current size and returns a Decision, with a cooldown so a burst of
// config writes cannot resize the pool repeatedly.
//
// # Usage
//
//	policy := scaling.NewPolicy(
//	    scaling.WithMinConcurrency(10),
//	    scaling.WithMaxConcurrency(200),
//	    scaling.WithReservedShare(0.3),
//	)
//	plan := policy.Plan(1000) // {Concurrency: 200, Reserved: 60}
package scaling
