package middleware

import (
	"net/http"

	"github.com/creatorsgardenofficial/garden-messaging/internal/repository"
)

// RequireActive refuses messaging operations from suspended or
// deleted accounts. The check belongs to the caller side of the core:
// services never re-check it.
func RequireActive(directory repository.UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())

			user, err := directory.GetByID(r.Context(), userID)
			if err != nil {
				http.Error(w, `{"error":{"code":"INTERNAL","message":"Something went wrong"}}`, http.StatusInternalServerError)
				return
			}
			if user == nil || !user.IsActive() {
				http.Error(w, `{"error":{"code":"ACCOUNT_SUSPENDED","message":"Your account is not active"}}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
