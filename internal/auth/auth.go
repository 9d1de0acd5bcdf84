package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the profile claims of the identity provider's ID token.
type Claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Picture    string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier turns session tokens into caller identities.
type Verifier struct {
	secret     []byte
	cookieName string
}

func NewVerifier(secret, cookieName string) *Verifier {
	return &Verifier{secret: []byte(secret), cookieName: cookieName}
}

// Sign issues a session token for the identity. Used by tests and local tooling.
func (v *Verifier) Sign(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:      id.Email,
		GivenName:  id.GivenName,
		FamilyName: id.FamilyName,
		Picture:    id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) Parse(tokenStr string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, errors.New("invalid token")
	}
	return models.Identity{
		Email:      c.Email,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
		Picture:    c.Picture,
	}, nil
}

// FromRequest reads the bearer token, falling back to the session cookie.
// Missing or invalid tokens yield the zero identity.
func (v *Verifier) FromRequest(r *http.Request) models.Identity {
	tok := ""
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, rest, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			tok = strings.TrimSpace(rest)
		}
	}
	if tok == "" {
		if c, err := r.Cookie(v.cookieName); err == nil {
			tok = c.Value
		}
	}
	if tok == "" {
		return models.Identity{}
	}
	id, err := v.Parse(tok)
	if err != nil {
		return models.Identity{}
	}
	return id
}

type ctxKey struct{}

// Middleware stores the caller identity in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := v.FromRequest(r)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity stored by Middleware, or the zero value.
func IdentityFrom(ctx context.Context) models.Identity {
	id, _ := ctx.Value(ctxKey{}).(models.Identity)
	return id
}
