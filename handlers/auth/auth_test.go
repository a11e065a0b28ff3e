package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"meme-studio/core"
)

func TestIssueAndParseToken(t *testing.T) {
	SetSecret([]byte("test-secret"))
	user := &core.User{Subject: "github:42", Login: "octo", Email: "o@example.com", Name: "Octo"}

	token, err := IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT() failed: %v", err)
	}
	if got := claims.User(); got != *user {
		t.Errorf("user: got %+v, want %+v", got, *user)
	}
	if d := time.Until(claims.ExpiresAt.Time); d < TokenLifetime-time.Minute || d > TokenLifetime {
		t.Errorf("unexpected lifetime %v", d)
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	SetSecret([]byte("test-secret"))
	good, _ := IssueToken(&core.User{Subject: "s"})

	SetSecret([]byte("other-secret"))
	if _, err := ParseJWT(good); err == nil {
		t.Error("token signed with another secret should be rejected")
	}

	SetSecret([]byte("test-secret"))
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "s",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, _ := expired.SignedString([]byte("test-secret"))
	if _, err := ParseJWT(signed); err == nil {
		t.Error("expired token should be rejected")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "s"}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ParseJWT(unsigned); err == nil {
		t.Error("unsigned token should be rejected")
	}

	SetSecret(nil)
	if _, err := IssueToken(&core.User{Subject: "s"}); err == nil {
		t.Error("issuing without a secret should fail")
	}
}

func TestCheckState(t *testing.T) {
	rr := httptest.NewRecorder()
	state, err := newState(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if err != nil {
		t.Fatal(err)
	}
	cookie := rr.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state, nil)
	req.AddCookie(cookie)
	if err := checkState(httptest.NewRecorder(), req); err != nil {
		t.Errorf("matching state rejected: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged", nil)
	req.AddCookie(cookie)
	if err := checkState(httptest.NewRecorder(), req); err == nil {
		t.Error("forged state should be rejected")
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state, nil)
	if err := checkState(httptest.NewRecorder(), req); err == nil {
		t.Error("missing cookie should be rejected")
	}
}

func TestHandleLogin_NotConfigured(t *testing.T) {
	loginHandler = nil
	rr := httptest.NewRecorder()
	HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d", rr.Code)
	}
}
