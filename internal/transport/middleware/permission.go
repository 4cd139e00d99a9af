package middleware

import (
	"log/slog"
	"net/http"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
)

// RequirePermissions checks that the authenticated caller holds at least one
// of the listed permissions.
func RequirePermissions(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := internal.UserIDFromContext(r.Context())
			if userID == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userPerms := internal.PermissionsFromContext(r.Context())

			hasPermission := false
			for _, requiredPerm := range permissions {
				for _, userPerm := range userPerms {
					if userPerm == requiredPerm {
						hasPermission = true
						break
					}
				}
				if hasPermission {
					break
				}
			}

			if !hasPermission {
				slog.Warn("access denied: caller lacks required permissions",
					"user_id", userID,
					"required_permissions", permissions,
					"user_permissions", userPerms)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
