package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	"github.com/thaiGO2003/DigiGO-sub000/pkg/logger"
)

type accessClaims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Authenticate validates the bearer token and loads the caller's identity and
// permissions into the request context.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeUnauthorized(w)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := &accessClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, internal.ErrInvalidToken
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				writeUnauthorized(w)
				return
			}

			ctx := internal.ContextWithUserID(r.Context(), claims.Subject)
			ctx = internal.ContextWithPermissions(ctx, claims.Permissions)
			ctx = logger.With(ctx, "userID", claims.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error": "INVALID_TOKEN", "message": "missing or invalid access token"}`))
}
