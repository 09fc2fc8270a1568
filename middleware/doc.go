// Package middleware exposes net/http adapters around goSecure.Engine.
//
// # Guards
//
//   - [Guard] verifies the Authorization bearer with Engine.Authenticate and
//     injects the result and the raw bearer into the request context.
//   - [ClientContext] copies the caller's IP and User-Agent into the context
//     so Login can record them on the new session.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// parse bearers or touch Redis itself; every decision is delegated to the
// Engine.
package middleware
