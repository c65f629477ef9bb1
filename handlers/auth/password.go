package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"guides-server/core"
)

var bcryptCost = 12

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func HandleRegister(users core.UserStore, notifications core.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)

		if len([]rune(req.Username)) < minUsernameLength {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Username must be at least 3 characters"})
			return
		}
		if len(req.Password) < minPasswordLength {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Password must be at least 6 characters"})
			return
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			logrus.WithError(err).Error("Failed to hash password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create user"})
			return
		}

		user := &core.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         core.RoleUser,
		}
		if err := users.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, core.ErrConflict) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, map[string]string{"error": "Username or email already exists"})
				return
			}
			logrus.WithError(err).Error("Failed to create user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create user"})
			return
		}

		welcome := &core.Notification{
			UserID:  user.ID,
			Message: "Welcome! Your account is waiting for approval.",
			Type:    core.NotificationInfo,
		}
		if err := notifications.AddNotification(r.Context(), welcome); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to add welcome notification")
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"user": user})
	}
}

func HandleLogin(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		log := logrus.WithField("username", req.Username)

		user, err := users.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			log.WithError(err).Error("Failed to look up user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Login failed"})
			return
		}
		if user == nil || user.PasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			log.Warn("Invalid login attempt")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid credentials"})
			return
		}
		if !user.Approved {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Account pending approval"})
			return
		}

		token, err := CreateJWT(user)
		if err != nil {
			log.WithError(err).Error("Failed to create JWT")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Login failed"})
			return
		}
		setSessionCookie(w, r, token)

		log.WithField("user_id", user.ID).Info("User logged in")
		render.JSON(w, r, map[string]any{"token": token, "user": user})
	}
}

// HandleCheck reports the signed-in user, or null.
func HandleCheck(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var user *core.User
		if token := TokenFromRequest(r); token != "" {
			if claims, err := ParseJWT(token); err == nil {
				if u, err := users.GetUser(r.Context(), claims.Subject); err == nil {
					user = u
				}
			}
		}
		render.JSON(w, r, map[string]any{"user": user})
	}
}

func HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	render.JSON(w, r, map[string]bool{"success": true})
}
