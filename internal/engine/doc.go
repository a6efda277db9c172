// Package engine runs connection tasks against a stream of targets.
//
// The Scheduler admits each target through the ConcurrencyGate before
// spawning its task, so live task goroutines never exceed the gate's
// capacity. A task then spends a RateLimiter token, connects within the
// connect timeout, drives the selected probe under the overall budget and
// emits exactly one ConnectionResult.
//
// Results flow back over a channel to a single collector goroutine, which
// calls the result handler in completion order. Handlers therefore never run
// concurrently and need no locking.
package engine
