package middleware

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/furnifit/furnifit-server/utils"
)

type contextKey string

const SessionContextKey contextKey = "session"

type Auth struct {
	Sessions *utils.SessionStore
}

// AuthMiddleware resolves the session cookie into a models.Session and puts
// it on the request context. Every identity-scoped route goes through here;
// handlers never look the session up themselves.
func (a *Auth) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := utils.SessionCookie(r)
		if err != nil {
			if err == http.ErrNoCookie {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Authentication token required")
				return
			}
			log.Printf("Auth failed: Error reading cookie: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Bad Request")
			return
		}

		jwtKey := os.Getenv("SESSION_JWT_SECRET")

		claims, err := utils.ParseSessionToken(tokenString, []byte(jwtKey))
		if err != nil {
			log.Printf("Auth failed: Invalid or expired token: %v", err)
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Invalid or expired token")
			return
		}

		session, err := a.Sessions.Get(r.Context(), claims.SessionID)
		if err != nil {
			if err == utils.ErrSessionNotFound {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Session expired")
				return
			}
			utils.RespondInternal(w, err, "Unable to load session")
			return
		}

		a.Sessions.Touch(r.Context(), session.ID)

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
