// Package gate provides the two admission gates every connection task passes
// before it may connect: a token-bucket RateLimiter bounding the rate of new
// connection attempts, and a ConcurrencyGate bounding how many connections
// are in flight at once.
//
// Both gates are built once per scan and handed to the scheduler explicitly.
// There is no package-level state, so independent scans can run in the same
// process.
package gate
