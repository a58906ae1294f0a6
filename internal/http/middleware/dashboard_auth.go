package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/tenancy"
)

// DashboardClaims are the claims carried by dashboard session tokens.
// The subject is the professional's id.
type DashboardClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// DashboardAuth validates HS256 session tokens and stashes the
// authenticated professional id in the request context.
func DashboardAuth(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		// Reject everything rather than run an open dashboard.
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"dashboard auth not configured"}`, http.StatusUnauthorized)
			})
		}
	}

	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(auth, "Bearer ")

			claims := &DashboardClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return key, nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			professionalID := claims.Subject
			if _, err := uuid.Parse(professionalID); err != nil {
				http.Error(w, `{"error":"invalid subject"}`, http.StatusUnauthorized)
				return
			}

			ctx := tenancy.WithProfessionalID(r.Context(), professionalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssueDashboardToken mints a session token for the given professional.
// Used by login flows and by integration tests.
func IssueDashboardToken(secret, professionalID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := DashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   professionalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("middleware: sign dashboard token: %w", err)
	}
	return signed, nil
}
