package jwt

import (
	"time"

	"github.com/MrEthical07/goRelay/permission"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the wire form of a bridge credential: {iat, exp, user_id, group_ids}.
//
// GroupIDs accepts a JSON array or a position-keyed object and decodes to an
// ordered sequence.
type Claims struct {
	UserID   int64             `json:"user_id"`
	GroupIDs permission.IDList `json:"group_ids"`
	jwt.RegisteredClaims
}

// Token is a verified credential. Tokens are immutable once returned by
// [Verifier.Verify]; sessions replace them wholesale on refresh.
type Token struct {
	UserID    int64
	GroupIDs  []int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func newToken(c *Claims) *Token {
	t := &Token{
		UserID:   c.UserID,
		GroupIDs: []int64(c.GroupIDs.Clone()),
	}
	if t.GroupIDs == nil {
		t.GroupIDs = []int64{}
	}
	if c.IssuedAt != nil {
		t.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		t.ExpiresAt = c.ExpiresAt.Time
	}
	return t
}

// Fresh reports whether now is strictly before ExpiresAt + tolerance.
// A nil token is never fresh.
func (t *Token) Fresh(now time.Time, tolerance time.Duration) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(tolerance))
}
