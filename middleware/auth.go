package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"guides-server/core"
	"guides-server/handlers/auth"
)

type contextKey string

const UserContextKey = contextKey("user")

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *core.User {
	user, _ := ctx.Value(UserContextKey).(*core.User)
	return user
}

// WithUser stores user in ctx the way Authenticate does.
func WithUser(ctx context.Context, user *core.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// Authenticate loads the user named by the request's token, if any. Requests
// without a valid token pass through anonymously; the Require middlewares
// decide what that means for a route.
func Authenticate(users core.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseJWT(token)
			if err != nil {
				logrus.WithError(err).Debug("Ignoring invalid token")
				next.ServeHTTP(w, r)
				return
			}

			// The store is the source of truth for role and approval.
			user, err := users.GetUser(r.Context(), claims.Subject)
			if err != nil {
				logrus.WithError(err).WithField("user_id", claims.Subject).Debug("Token user not found")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireApproved(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFromContext(r.Context()).Approved {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Account pending approval"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireModerator admits owners and moderators.
func RequireModerator(next http.Handler) http.Handler {
	return RequireApproved(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFromContext(r.Context()).Role.CanModerate() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Insufficient permissions"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}
