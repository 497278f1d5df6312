// Package auth verifies the bearer tokens issued by the identity provider and
// turns them into domain actors.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/punchamoorthee/trash2cash/internal/domain"
)

var (
	ErrMissingToken = errors.New("authorization header is missing")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type ctxKey struct{}

// Claims is the token payload: the subject is the actor id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies HS256 tokens with a shared secret.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	return &Authenticator{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for actor valid for ttl.
func (a *Authenticator) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if actor.ID == "" || !actor.Role.Valid() {
		return "", fmt.Errorf("cannot issue token for actor %+v", actor)
	}
	now := a.now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses tokenString and returns the actor it identifies.
func (a *Authenticator) Verify(tokenString string) (domain.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{ID: claims.Subject, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// actor in the request context for ActorFrom.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.FromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// FromRequest extracts and verifies the bearer token of r.
func (a *Authenticator) FromRequest(r *http.Request) (domain.Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.Actor{}, ErrMissingToken
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header || tokenString == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return a.Verify(tokenString)
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFrom returns the actor stored by Middleware.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(domain.Actor)
	return actor, ok
}
