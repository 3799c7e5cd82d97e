// Package auth verifies identity tokens issued by the external identity
// provider and carries the authenticated user through request contexts.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie consulted when no Authorization header is sent.
const SessionCookie = "session"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey string

const userIDContextKey contextKey = "userID"

// Verifier validates HS256 tokens whose subject is the user id.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier creates a verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 30 * time.Second,
		now:    time.Now,
	}, nil
}

// Verify checks the token signature, expiry and issuer and returns the
// subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: 'sub' claim missing", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Sign issues a token for userID valid for ttl. Used by local tooling and
// tests; production tokens come from the identity provider.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func TokenFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return h
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware rejects requests without a valid token with a 401 JSON error
// and stores the user id in the request context otherwise.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.Verify(TokenFromRequest(r))
		if err != nil {
			slog.WarnContext(r.Context(), "Token validation failed", "path", r.URL.Path, "error", err)
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserID returns the authenticated user stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok && id != ""
}

// UserFromRequest is UserID for a request; it returns "" when anonymous.
func UserFromRequest(r *http.Request) string {
	id, _ := UserID(r.Context())
	return id
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="subtrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
