// Package token issues and verifies short-lived session tokens.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
	ErrTokenExpired = errors.New("token_expired")
	ErrNoSecret     = errors.New("missing_jwt_secret")
)

// Claims is the decoded session payload. Plan is informational only; the
// quota gate always reads the entitlement store, never the token.
type Claims struct {
	UserID   string
	Email    string
	PlanTier string
	IssuedAt time.Time
	Expiry   time.Time
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a shared secret. There is
// no revocation list; expiry is the only invalidation mechanism.
type Manager struct {
	secret []byte
	method jwt.SigningMethod
	expiry time.Duration
	now    func() time.Time
}

// NewManager builds a Manager for the configured secret, HMAC algorithm
// (HS256, HS384 or HS512) and token lifetime.
func NewManager(secret string, algorithm string, expiry time.Duration) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoSecret
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.New("unsupported_jwt_algorithm")
	}

	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Manager{
		secret: []byte(secret),
		method: method,
		expiry: expiry,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue signs a token for the given account.
func (m *Manager) Issue(userID string, email string, planTier string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidToken
	}

	now := m.now()
	claims := sessionClaims{
		Email: strings.TrimSpace(email),
		Plan:  strings.TrimSpace(planTier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	return jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
}

// Verify checks the signature and expiry of a raw token, tolerating an
// optional "Bearer " prefix, and returns the decoded claims.
func (m *Manager) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "Bearer ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{},
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != m.method.Alg() {
				return nil, ErrInvalidToken
			}
			return m.secret, nil
		},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		UserID:   claims.Subject,
		Email:    claims.Email,
		PlanTier: claims.Plan,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.Expiry = claims.ExpiresAt.Time
	}
	return out, nil
}
