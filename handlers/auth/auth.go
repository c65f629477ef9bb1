package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

// SessionCookie holds the JWT for browser clients.
const SessionCookie = "session"

const tokenLifetime = 7 * 24 * time.Hour

var (
	jwtSecret []byte
	userStore core.UserStore
)

// AppClaims represents the custom claims for the JWT. The registered
// subject is the user ID.
type AppClaims struct {
	jwt.RegisteredClaims
	Username string    `json:"username"`
	Role     core.Role `json:"role"`
}

// InitAuth reads the signing secret and external provider settings from
// the environment.
func InitAuth(users core.UserStore) {
	userStore = users

	provider = providerFromEnv(context.Background())
	if provider != nil {
		logrus.WithField("provider", provider.Name()).Info("External login enabled")
	} else {
		logrus.Info("No external login provider configured, password login only")
	}

	jwtSecret = []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
}

// ExternalUser returns the user linked to subject, creating it on first
// login. A taken username gets a numeric suffix.
func ExternalUser(ctx context.Context, users core.UserStore, subject, username, email string) (*core.User, error) {
	user, err := users.GetUserBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	if username == "" {
		username = "user"
	}
	for i := 0; i < 10; i++ {
		candidate := username
		if i > 0 {
			candidate = fmt.Sprintf("%s%d", username, i+1)
		}
		user = &core.User{
			Username: candidate,
			Email:    email,
			Subject:  subject,
			Role:     core.RoleUser,
		}
		err = users.CreateUser(ctx, user)
		if err == nil {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "subject": subject}).Info("Created user from external login")
			return user, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		// The email may be the conflicting column; retry without it.
		email = ""
	}
	return nil, err
}

// CreateJWT signs a session token for user.
func CreateJWT(user *core.User) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
		Username: user.Username,
		Role:     user.Role,
	}).SignedString(jwtSecret)
}

// ParseJWT verifies an HS256 session token and returns its claims.
func ParseJWT(raw string) (*AppClaims, error) {
	claims := &AppClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(tokenLifetime),
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// secureRequest reports whether the client reached us over TLS, directly or
// through a proxy.
func secureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
