// Package jwt verifies the signed, time-bounded credentials that admit a session
// and refresh its identity, using strict HMAC validation suitable for the
// handshake path.
//
// A credential carries {iat, exp, user_id, group_ids}. [Verifier.Verify] turns
// one into an immutable [Token] or an error wrapping [ErrTokenInvalid];
// [Verifier.IsFresh] answers the lazy staleness question the broadcast engine
// asks on every delivery. [Issuer] exists for producer tooling only.
package jwt
