package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"guides-server/core"
)

const (
	resetAudience = "password-reset"
	resetLifetime = 30 * time.Minute
)

var errResetToken = errors.New("invalid or expired reset token")

// resetKey binds a reset token to the password it replaces, so a token
// stops working once it has been used.
func resetKey(user *core.User) []byte {
	key := make([]byte, 0, len(jwtSecret)+1+len(user.PasswordHash))
	key = append(key, jwtSecret...)
	key = append(key, '.')
	return append(key, user.PasswordHash...)
}

// CreateResetToken signs a single-use password reset token for user.
func CreateResetToken(user *core.User) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(resetLifetime)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		Audience:  jwt.ClaimStrings{resetAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(resetKey(user))
	return token, expires, err
}

// parseResetToken returns the user a valid reset token was issued for.
func parseResetToken(ctx context.Context, users core.UserStore, raw string) (*core.User, error) {
	var user *core.User
	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		subject, err := t.Claims.GetSubject()
		if err != nil || subject == "" {
			return nil, errResetToken
		}
		if user, err = users.GetUser(ctx, subject); err != nil {
			return nil, err
		}
		return resetKey(user), nil
	}, jwt.WithAudience(resetAudience), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || user == nil {
			return nil, errResetToken
		}
		return nil, fmt.Errorf("%w: %v", errResetToken, err)
	}
	return user, nil
}

type (
	resetRequest struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}

	changeRequest struct {
		CurrentPassword string `json:"current_password"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
)

// newPasswordError validates a new password and its confirmation.
func newPasswordError(password, confirm string) string {
	if password != confirm {
		return "Passwords don't match"
	}
	if len(password) < minPasswordLength {
		return "Password must be at least 6 characters"
	}
	return ""
}

func storePassword(ctx context.Context, users core.UserStore, user *core.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return users.UpdateUser(ctx, user)
}

// HandleResetPassword sets a new password using a token issued from the
// owner panel.
func HandleResetPassword(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if msg := newPasswordError(req.Password, req.ConfirmPassword); msg != "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		user, err := parseResetToken(r.Context(), users, req.Token)
		if err != nil {
			logrus.WithError(err).Warn("Rejected password reset")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid or expired reset token"})
			return
		}

		log := logrus.WithField("user_id", user.ID)
		if err := storePassword(r.Context(), users, user, req.Password); err != nil {
			log.WithError(err).Error("Failed to reset password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Password reset failed"})
			return
		}
		log.Info("Password reset")
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleChangePassword lets a signed-in user replace their password. Users
// without one, from external login, may set one without a current password.
func HandleChangePassword(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := ParseJWT(TokenFromRequest(r))
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authentication required"})
			return
		}
		var req changeRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if msg := newPasswordError(req.Password, req.ConfirmPassword); msg != "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		log := logrus.WithField("user_id", claims.Subject)
		user, err := users.GetUser(r.Context(), claims.Subject)
		if err != nil {
			log.WithError(err).Warn("Password change for unknown user")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authentication required"})
			return
		}
		if user.PasswordHash != "" &&
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
			log.Warn("Password change with wrong current password")
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Current password is incorrect"})
			return
		}

		if err := storePassword(r.Context(), users, user, req.Password); err != nil {
			log.WithError(err).Error("Failed to change password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Password change failed"})
			return
		}
		log.Info("Password changed")
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
