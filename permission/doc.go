// Package permission implements the access-control predicate evaluated for
// every outbound message: a [Set] of user ids and group clauses attached by the
// producer, matched against the user id and group ids of a session credential.
//
// # Semantics
//
// Under [ModeAll] (the default) a credential satisfies a set iff
//
//	(UserIDs is empty OR userID is in UserIDs) AND
//	(every non-nil group clause intersects the credential's groups or contains -1)
//
// An empty set matches every credential. [ModeAny] accepts a credential when
// either non-empty half holds.
//
// # Architecture boundaries
//
// This package is pure: no I/O, no clocks, no shared state. It also owns the
// JSON decoding of id collections ([IDList], [Clauses]) so that producers may
// send either arrays or position-keyed objects.
//
// # What this package must NOT do
//
//   - Access Redis, the network, or session state.
//   - Import goRelay, jwt, session, or bus.
package permission
