// Package auth verifies bearer credentials and yields viewer identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidgate/vidgate/internal/metrics"
	"github.com/vidgate/vidgate/pkg/models"
)

// Token validity for credentials minted by GenerateToken.
const TokenLifetime = 24 * time.Hour

const issuer = "vidgate"

// Sentinel errors for credential handling.
var (
	ErrMissingSecret     = errors.New("signing secret is required")
	ErrMissingIdentity   = errors.New("identity id is required")
	ErrMissingAuthHeader = errors.New("authorization header missing")
	ErrInvalidAuthFormat = errors.New("invalid authorization format")
)

// Claims carries the viewer identity inside a bearer credential. The subject
// is the stable viewer id; the email is what analytics aggregates key on.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the viewer identity carried by the claims.
func (c *Claims) Identity() models.Identity {
	return models.Identity{
		ID:    c.Subject,
		Email: c.Email,
	}
}

// JWTService validates bearer credentials against a shared signing secret.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a JWTService with the given secret.
func NewJWTService(secret []byte) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	return &JWTService{secret: secret}, nil
}

// GenerateToken mints a credential for the given identity. The API itself
// never mints tokens for clients; this exists for the identity-provider side
// of the contract and for tests.
func (s *JWTService) GenerateToken(id, email string) (string, error) {
	if id == "" {
		return "", ErrMissingIdentity
	}

	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies a credential and returns its claims. It fails closed
// on any parse, signature, or expiry problem.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrUnauthenticated
	}

	return claims, nil
}

// ExtractTokenFromRequest pulls the bearer token out of the Authorization
// header: "Authorization: Bearer <token>".
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidAuthFormat
	}

	return parts[1], nil
}

type contextKey string

const identityContextKey contextKey = "identity"

// SetIdentityInContext stores the verified identity on the context.
func SetIdentityInContext(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the verified identity from the context.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(models.Identity)
	return identity, ok
}

// Middleware returns a middleware that verifies the bearer credential before
// the wrapped handler runs, and stores the identity on the request context.
// Repeated failures from one client IP are throttled via the rate limiter,
// which also bounds brute forcing of credentials.
func (s *JWTService) Middleware(rl *RateLimiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			clientIP := GetClientIP(r)

			if rl != nil && rl.IsLimited(clientIP) {
				metrics.AuthFailures.WithLabelValues("rate_limited").Inc()
				http.Error(w, "Too many failed attempts", http.StatusTooManyRequests)
				return
			}

			tokenString, err := ExtractTokenFromRequest(r)
			if err != nil {
				if rl != nil {
					rl.RecordFailure(clientIP)
				}
				metrics.AuthFailures.WithLabelValues("missing_credential").Inc()
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := s.ValidateToken(tokenString)
			if err != nil {
				if rl != nil {
					rl.RecordFailure(clientIP)
				}
				metrics.AuthFailures.WithLabelValues("invalid_credential").Inc()
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if rl != nil {
				rl.Reset(clientIP)
			}

			ctx := SetIdentityInContext(r.Context(), claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}
