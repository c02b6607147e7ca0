package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vedran77/pulsefeed/internal/domain"
)

type contextKey string

const UserKey contextKey = "user"

var ErrInvalidToken = errors.New("invalid token")

// ParseToken validates an HS256 token and returns the identity it carries
// in its "sub" and "name" claims.
func ParseToken(tokenStr, jwtSecret string) (domain.User, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return domain.User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.User{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.User{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)

	return domain.User{ID: sub, DisplayName: name}, nil
}

// Auth rejects requests without a valid bearer token.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, true)
}

// OptionalAuth lets anonymous requests through but rejects invalid tokens.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, false)
}

func authenticate(jwtSecret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "Missing or invalid token")
				return
			}

			user, err := ParseToken(strings.TrimPrefix(header, "Bearer "), jwtSecret)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}

// GetUser returns the authenticated user, if any.
func GetUser(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(UserKey).(domain.User)
	return user, ok
}
