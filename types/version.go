// Package types holds the handful of cross-cutting constants derpd and
// derpctl both need to agree on, independent of any one rank's state.
package types

// Version is the canonical project version, shared lockstep across derpd
// and derpctl.
const Version = "0.1.0"
