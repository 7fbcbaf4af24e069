// Package bus consumes and produces relay envelopes on Redis pub/sub.
//
// An envelope is one JSON object per publish:
//
//	{"permissions": {"user_ids": [...], "group_ids": [[...] | null, ...]}, "data": <any>}
//
// [Subscriber] pattern-subscribes to the whole namespace and hands every valid
// envelope, with the channel it arrived on, to a handler. [ParseEnvelope] is
// the parse boundary: anything that is not a well-formed envelope is rejected
// there with [ErrMalformed] or [ErrInvalidShape]. [Publisher] is the producer
// side used by tooling and tests.
//
// # What this package must NOT do
//
//   - Evaluate permissions or touch sessions.
//   - Reconnect on its own; a lost subscription is reported and left to the
//     process supervisor.
package bus
