package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// TokenLifetime is how long an issued session token stays valid.
const TokenLifetime = 7 * 24 * time.Hour

const stateCookie = "oauth_state"

var (
	loginHandler    http.HandlerFunc
	callbackHandler http.HandlerFunc

	jwtSecret []byte
	// frontendURL receives the token after a successful login.
	frontendURL = "/"
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// User returns the profile carried by the claims.
func (c *AppClaims) User() core.User {
	return core.User{
		Subject:   c.Subject,
		Login:     c.Login,
		Email:     c.Email,
		AvatarURL: c.AvatarURL,
		Name:      c.Name,
	}
}

// InitAuth picks the login provider from the environment: OIDC when an
// issuer is configured, GitHub otherwise.
func InitAuth() {
	oidcConfigured := os.Getenv("OIDC_ISSUER_URL") != "" && os.Getenv("OIDC_CLIENT_ID") != ""
	githubConfigured := os.Getenv("GITHUB_CLIENT_ID") != "" && os.Getenv("GITHUB_CLIENT_SECRET") != ""

	switch {
	case oidcConfigured:
		logrus.Info("Initializing OIDC authentication provider.")
		initOIDC()
		loginHandler = handleOIDCLogin
		callbackHandler = handleOIDCCallback
	case githubConfigured:
		logrus.Info("Initializing GitHub authentication provider.")
		initGitHub()
		loginHandler = handleGitHubLogin
		callbackHandler = handleGitHubCallback
	default:
		logrus.Warn("No authentication provider configured.")
		loginHandler = notConfigured
		callbackHandler = notConfigured
	}

	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		frontendURL = strings.TrimRight(base, "/") + "/"
	}
	SetSecret([]byte(os.Getenv("JWT_SECRET")))
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
}

// SetSecret replaces the HMAC key used to sign and verify tokens.
func SetSecret(secret []byte) {
	jwtSecret = secret
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Authentication not configured", http.StatusInternalServerError)
}

func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if loginHandler == nil {
		notConfigured(w, r)
		return
	}
	loginHandler(w, r)
}

func HandleCallback(w http.ResponseWriter, r *http.Request) {
	if callbackHandler == nil {
		notConfigured(w, r)
		return
	}
	callbackHandler(w, r)
}

func newState(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// checkState compares the callback state with the login cookie and clears it.
func checkState(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return errors.New("missing state cookie")
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})
	if cookie.Value == "" || cookie.Value != r.FormValue("state") {
		return errors.New("state mismatch")
	}
	return nil
}

// finishLogin issues a token for user and hands it to the frontend.
func finishLogin(w http.ResponseWriter, r *http.Request, user *core.User) {
	token, err := IssueToken(user)
	if err != nil {
		logrus.Errorf("failed to create JWT: %s", err.Error())
		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
		return
	}
	logrus.WithFields(logrus.Fields{"subject": user.Subject, "login": user.Login}).Info("User logged in")
	http.Redirect(w, r, frontendURL+"?token="+url.QueryEscape(token), http.StatusTemporaryRedirect)
}

func failLogin(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logrus.WithError(err).Error(msg)
	http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
}

// IssueToken signs an HS256 token for user.
func IssueToken(user *core.User) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (*AppClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
