// Package middleware exposes HTTP middleware for producer-side endpoints that
// accept the same credentials the bridge does.
//
// # Guards
//
//   - [Guard] verifies the bearer credential and stores the [jwt.Token] in the
//     request context.
//   - [RequirePermission] rejects requests whose token does not satisfy a
//     permission set.
//
// # What this package must NOT do
//
//   - Issue credentials (see jwt.Issuer).
//   - Access Redis or the session registry.
//   - Make decisions beyond pass/reject from the verifier and matcher.
package middleware
