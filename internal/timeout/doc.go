// Package timeout composes the three deadlines that bound one connection
// task: the connect timeout, the per-read timeout and the overall budget.
//
// A Policy holds the configured durations. Policy.Start anchors a Budget at
// task start; the Budget then answers "how long may the next operation take"
// as min(phase timeout, remaining overall budget), recomputed on every call.
package timeout
