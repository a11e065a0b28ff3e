package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"meme-studio/core"
)

var (
	githubOauthConfig *oauth2.Config

	oidcOauthConfig *oauth2.Config
	verifier        *oidc.IDTokenVerifier
)

// OIDCClaims represents the claims from OIDC token
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

func initGitHub() {
	githubOauthConfig = &oauth2.Config{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}
}

func initOIDC() {
	providerURL := os.Getenv("OIDC_ISSUER_URL")
	clientID := os.Getenv("OIDC_CLIENT_ID")
	clientSecret := os.Getenv("OIDC_CLIENT_SECRET")

	if clientSecret == "" {
		logrus.Warn("OIDC_CLIENT_SECRET is not set. OIDC authentication routes will not work.")
		return
	}

	provider, err := oidc.NewProvider(context.Background(), providerURL)
	if err != nil {
		logrus.Errorf("Failed to create OIDC provider: %s", err.Error())
		return
	}

	oidcOauthConfig = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
	logrus.Info("OIDC provider initialized")
}

func handleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState(w, r)
	if err != nil {
		http.Error(w, "Failed to generate login state", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, githubOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if err := checkState(w, r); err != nil {
		failLogin(w, r, "invalid oauth state", err)
		return
	}

	ctx := r.Context()
	token, err := githubOauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		failLogin(w, r, "failed to exchange token", err)
		return
	}

	resp, err := githubOauthConfig.Client(ctx, token).Get("https://api.github.com/user")
	if err != nil {
		failLogin(w, r, "failed to get user from github", err)
		return
	}
	defer resp.Body.Close()

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		failLogin(w, r, "failed to decode github user", err)
		return
	}

	finishLogin(w, r, &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	})
}

func handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if oidcOauthConfig == nil {
		http.Error(w, "OIDC is not configured", http.StatusInternalServerError)
		return
	}
	state, err := newState(w, r)
	if err != nil {
		http.Error(w, "Failed to generate state for OIDC login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, oidcOauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

func handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if oidcOauthConfig == nil {
		http.Error(w, "OIDC is not configured", http.StatusInternalServerError)
		return
	}
	if err := checkState(w, r); err != nil {
		failLogin(w, r, "invalid oidc state", err)
		return
	}

	ctx := r.Context()
	token, err := oidcOauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		failLogin(w, r, "failed to exchange token", err)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		failLogin(w, r, "no id_token in token response", nil)
		return
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		failLogin(w, r, "failed to verify ID token", err)
		return
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		failLogin(w, r, "failed to extract claims from ID token", err)
		return
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" {
		user.Login = user.Email
	}
	finishLogin(w, r, user)
}
