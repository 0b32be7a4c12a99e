package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ariefcatur/drone-orders/internal/orders"
	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims follow the hosted store's access tokens: sub is the user id and
// admin rights come from app_metadata or a top-level role claim.
type Claims struct {
	jwt.RegisteredClaims
	Role        string      `json:"role,omitempty"`
	AppMetadata appMetadata `json:"app_metadata,omitempty"`
}

type appMetadata struct {
	Role    string `json:"role,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

func (c Claims) admin() bool {
	return c.AppMetadata.IsAdmin ||
		strings.EqualFold(c.AppMetadata.Role, "admin") ||
		strings.EqualFold(c.Role, "admin")
}

// Verifier checks HS256 tokens signed with the project's JWT secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (v *Verifier) Verify(token string) (orders.Principal, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return orders.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return orders.Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return orders.Principal{ID: claims.Subject, IsAdmin: claims.admin()}, nil
}

// Sign issues a token for p. Used by tooling and tests.
func (v *Verifier) Sign(p orders.Principal, c jwt.RegisteredClaims) (string, error) {
	c.Subject = p.ID
	claims := Claims{RegisteredClaims: c}
	if p.IsAdmin {
		claims.AppMetadata.Role = "admin"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p orders.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (orders.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(orders.Principal)
	return p, ok
}

func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
