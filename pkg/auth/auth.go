// Package auth provides bearer-token authentication for the enclave HTTP
// surface. Tokens are HS256-signed service tokens verified against a
// shared secret, with optional issuer and audience checks.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/enclave/pkg/observability"
)

// ErrUnauthenticated is returned for missing or invalid credentials.
var ErrUnauthenticated = errors.New("authentication required")

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier from the token's sub claim.
	Subject string
}

// Authenticator verifies a bearer token and returns the caller identity.
type Authenticator interface {
	Authenticate(token string) (*Identity, error)
}

// TokenAuthenticator verifies HS256 service tokens.
type TokenAuthenticator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenAuthenticator creates a TokenAuthenticator. Issuer and audience
// are checked only when non-empty.
func NewTokenAuthenticator(secret []byte, issuer, audience string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: secret, issuer: issuer, audience: audience}
}

// Authenticate parses and verifies the token.
func (a *TokenAuthenticator) Authenticate(token string) (*Identity, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256"}),
	}
	if a.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.audience))
	}

	parsed, err := jwtlib.Parse(token, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	return &Identity{Subject: subject}, nil
}

// Middleware wraps an HTTP handler with bearer-token authentication. A
// nil authenticator passes every request through.
func Middleware(authn Authenticator, next http.Handler) http.Handler {
	if authn == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			reject(w)
			return
		}
		if _, err := authn.Authenticate(token); err != nil {
			reject(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func reject(w http.ResponseWriter) {
	observability.RequestsRejectedTotal.WithLabelValues("auth").Inc()
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
}
