// Package model defines the data structures shared by the scanning engine,
// the protocol probes and the result sinks.
//
// This package contains the following main types:
//   - Target: An address to connect to, plus the hostname it came from
//   - Mode: Passive (read only) or Active (protocol handshake) probing
//   - Outcome: The terminal state of one connection attempt
//   - ConnectionResult: One record per target, handed to the result sinks
//   - Banner: Captured bytes with printable, hex and digest renderings
//
// Design decision: Models live in their own package so that engine, protocol
// and report can all use them without import cycles.
package model
