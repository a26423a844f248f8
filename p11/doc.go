// Package p11 is a protocol-level client for PKCS#11 cryptographic
// tokens. It drives the operation table exposed by a provider library
// to inspect slots, tokens and mechanisms, enumerate objects, decode
// typed attribute values, and exercise sign/verify operations.
//
// The package covers:
//   - Loading a provider library and its function table
//   - Session lifecycle with optional login, including tokens with a
//     protected authentication path
//   - The three-call find protocol for object enumeration
//   - Per-attribute retrieval with the size-then-fill convention and
//     the "information unavailable" sentinel
//   - Data-driven attribute dumps with per-class handler tables
//   - Sign-then-verify round trips and detached verification
//
// All provider calls are blocking and a session is owned by a single
// goroutine for its lifetime; no timeouts are applied to provider
// calls, so a hung provider blocks the caller.
//
// An in-memory module is provided for tests and for exercising the
// tool without hardware.
package p11
