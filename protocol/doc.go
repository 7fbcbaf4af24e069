// Package protocol is the session wire codec: it parses inbound control
// messages into a closed set of variants and encodes outbound frames.
//
// Inbound frames have the form {"action": "...", "data": {...}}. Anything that
// does not decode into one of [RefreshToken], [AddChannels] or
// [RemoveChannels] is rejected at this boundary with a typed error.
package protocol
