// Package relay implements the proxy relay at the core of the bridge.
//
// The package implements three responsibilities inside one Relay:
//   - Connection state tracking: owns the remote connection handle and
//     produces a single authoritative liveness answer, self-healing its
//     declared flag when the handle's readiness disagrees
//   - Session management: admits a new local transport while retiring any
//     previous one, so at most one session receives inbound remote traffic
//   - Message routing: forwards payloads in both directions, isolating
//     per-message failures from the bridge's overall availability
//
// Every entry point is safe to call from any goroutine and never lets a
// failure escape to its caller; a bad message degrades to a log line, not a
// crash.
package relay
