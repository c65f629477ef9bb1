package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const stateCookie = "login_state"

// identity is what an external provider tells us about the person logging in.
type identity struct {
	Subject  string
	Username string
	Email    string
}

// identityProvider drives one OAuth2 authorization code flow.
type identityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (identity, error)
}

// provider is nil when only password login is available.
var provider identityProvider

// providerFromEnv prefers OIDC over GitHub when both are configured.
func providerFromEnv(ctx context.Context) identityProvider {
	if issuer := os.Getenv("OIDC_ISSUER_URL"); issuer != "" && os.Getenv("OIDC_CLIENT_ID") != "" {
		p, err := newOIDCProvider(ctx, issuer, os.Getenv("OIDC_CLIENT_ID"), os.Getenv("OIDC_CLIENT_SECRET"), os.Getenv("OIDC_REDIRECT_URL"))
		if err != nil {
			logrus.WithError(err).WithField("issuer", issuer).Error("OIDC discovery failed, external login disabled")
			return nil
		}
		return p
	}
	if id, secret := os.Getenv("GITHUB_CLIENT_ID"), os.Getenv("GITHUB_CLIENT_SECRET"); id != "" && secret != "" {
		return &githubProvider{conf: &oauth2.Config{
			ClientID:     id,
			ClientSecret: secret,
			RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}}
	}
	return nil
}

type githubProvider struct {
	conf *oauth2.Config
	// userURL is overridden in tests.
	userURL string
}

func (p *githubProvider) Name() string { return "github" }

func (p *githubProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *githubProvider) Identify(ctx context.Context, code string) (identity, error) {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return identity{}, fmt.Errorf("exchange code: %w", err)
	}

	url := p.userURL
	if url == "" {
		url = "https://api.github.com/user"
	}
	resp, err := p.conf.Client(ctx, token).Get(url)
	if err != nil {
		return identity{}, fmt.Errorf("fetch github user: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return identity{}, fmt.Errorf("fetch github user: status %d", resp.StatusCode)
	}

	var account struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return identity{}, fmt.Errorf("decode github user: %w", err)
	}
	return identity{
		Subject:  fmt.Sprintf("github:%d", account.ID),
		Username: account.Login,
		Email:    account.Email,
	}, nil
}

type oidcProvider struct {
	conf     *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func newOIDCProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*oidcProvider, error) {
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	logrus.WithField("issuer", issuer).Info("OIDC provider discovered")
	return &oidcProvider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     discovered.Endpoint(),
		},
		verifier: discovered.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *oidcProvider) Name() string { return "oidc" }

func (p *oidcProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *oidcProvider) Identify(ctx context.Context, code string) (identity, error) {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return identity{}, fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok {
		return identity{}, errors.New("token response carries no id_token")
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return identity{}, fmt.Errorf("id_token claims: %w", err)
	}
	username := claims.PreferredUsername
	if username == "" {
		username = claims.Email
	}
	return identity{Subject: "oidc:" + claims.Subject, Username: username, Email: claims.Email}, nil
}

// HandleProviderLogin redirects to the configured provider with a fresh
// state value remembered in a short-lived cookie.
func HandleProviderLogin(w http.ResponseWriter, r *http.Request) {
	if provider == nil {
		http.Error(w, "External login not configured", http.StatusNotFound)
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleProviderCallback finishes the flow. Unknown subjects get a new,
// unapproved account and land back on the login page.
func HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	if provider == nil {
		http.Error(w, "External login not configured", http.StatusNotFound)
		return
	}
	log := logrus.WithField("provider", provider.Name())

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.FormValue("state") {
		log.Warn("Login callback with invalid state")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		log.Warn("Login callback without code")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	id, err := provider.Identify(r.Context(), code)
	if err != nil {
		log.WithError(err).Error("External login failed")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	user, err := ExternalUser(r.Context(), userStore, id.Subject, id.Username, id.Email)
	if err != nil {
		log.WithError(err).WithField("subject", id.Subject).Error("Failed to resolve external user")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	if !user.Approved {
		http.Redirect(w, r, "/login?error=pending", http.StatusTemporaryRedirect)
		return
	}

	token, err := CreateJWT(user)
	if err != nil {
		log.WithError(err).Error("Failed to sign session token")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	setSessionCookie(w, r, token)
	http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
}
