package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goRelay/permission"
	"github.com/golang-jwt/jwt/v5"
)

// IssuerConfig controls credential issuance on the producer side.
type IssuerConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	Now       func() time.Time
}

// Issuer signs bridge credentials. The bridge never issues tokens; Issuer backs
// producer tooling and tests.
type Issuer struct {
	config IssuerConfig
	method jwt.SigningMethod
}

// NewIssuer validates cfg and returns an Issuer. Algorithm defaults to HS256.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := supportedAlgorithms[alg]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{config: cfg, method: method}, nil
}

// Issue returns a signed credential for userID with the given group ids.
func (i *Issuer) Issue(userID int64, groupIDs []int64) (string, error) {
	now := i.config.Now()
	claims := Claims{
		UserID:   userID,
		GroupIDs: permission.IDList(groupIDs).Clone(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
		},
	}
	if claims.GroupIDs == nil {
		claims.GroupIDs = permission.IDList{}
	}

	return jwt.NewWithClaims(i.method, claims).SignedString(i.config.Secret)
}
