package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid wraps every verification failure. The underlying golang-jwt
// sentinel (for example jwt.ErrTokenExpired) stays reachable through errors.Is.
var ErrTokenInvalid = errors.New("token invalid")

// ErrTokenTooOld is returned when iat + MaxAge has passed.
var ErrTokenTooOld = errors.New("token exceeds max age")

// MaxClockTolerance bounds Config.ClockTolerance.
const MaxClockTolerance = 5 * time.Minute

var supportedAlgorithms = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// Config controls credential verification.
type Config struct {
	// Secret is the shared HMAC key the producer signs with.
	Secret []byte
	// Algorithms is the allow-list of accepted "alg" header values.
	Algorithms []string
	// MaxAge rejects tokens issued longer ago than this. Zero disables the check.
	MaxAge time.Duration
	// ClockTolerance is applied to exp, nbf, iat and MaxAge checks.
	ClockTolerance time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Verifier validates signed credentials into [Token] values.
//
// A Verifier is immutable after construction and safe for concurrent use.
type Verifier struct {
	config     Config
	algorithms []string
	parser     *jwt.Parser
}

// NewVerifier validates cfg and returns a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if len(cfg.Algorithms) == 0 {
		return nil, errors.New("at least one signing algorithm is required")
	}
	if cfg.MaxAge < 0 {
		return nil, errors.New("invalid max age configuration")
	}
	if cfg.ClockTolerance < 0 || cfg.ClockTolerance > MaxClockTolerance {
		return nil, errors.New("invalid clock tolerance configuration")
	}

	algorithms := make([]string, 0, len(cfg.Algorithms))
	for _, alg := range cfg.Algorithms {
		alg = strings.ToUpper(strings.TrimSpace(alg))
		if _, ok := supportedAlgorithms[alg]; !ok {
			return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
		}
		algorithms = append(algorithms, alg)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods(algorithms),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.ClockTolerance > 0 {
		options = append(options, jwt.WithLeeway(cfg.ClockTolerance))
	}

	return &Verifier{
		config:     cfg,
		algorithms: algorithms,
		parser:     jwt.NewParser(options...),
	}, nil
}

// Verify checks the signature, algorithm, expiry, not-before, issued-at and
// max-age of raw. It never panics; every failure wraps [ErrTokenInvalid].
func (v *Verifier) Verify(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, jwt.ErrTokenMalformed)
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return v.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, jwt.ErrTokenInvalidClaims)
	}

	if v.config.MaxAge > 0 {
		if claims.IssuedAt == nil {
			return nil, fmt.Errorf("%w: %w: iat", ErrTokenInvalid, jwt.ErrTokenRequiredClaimMissing)
		}
		deadline := claims.IssuedAt.Time.Add(v.config.MaxAge + v.config.ClockTolerance)
		if !v.config.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenTooOld)
		}
	}

	return newToken(claims), nil
}

// IsFresh reports whether now < token.ExpiresAt + ClockTolerance.
func (v *Verifier) IsFresh(token *Token, now time.Time) bool {
	return token.Fresh(now, v.config.ClockTolerance)
}

// ClockTolerance returns the configured tolerance.
func (v *Verifier) ClockTolerance() time.Duration {
	return v.config.ClockTolerance
}

// Algorithms returns a copy of the normalized allow-list.
func (v *Verifier) Algorithms() []string {
	out := make([]string, len(v.algorithms))
	copy(out, v.algorithms)
	return out
}
