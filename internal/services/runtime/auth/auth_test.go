package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
)

const secret = "test-secret"

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestVerifier(audience string) *Verifier {
	v := NewVerifier(secret, audience)
	v.now = func() time.Time { return fixedNow }
	return v
}

func sign(t *testing.T, key string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "controller",
		Audience:  jwt.ClaimStrings{"arkomp"},
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
	}
}

func TestNewVerifierDisabledWithoutSecret(t *testing.T) {
	if NewVerifier("  ", "arkomp") != nil {
		t.Fatal("expected nil verifier for blank secret")
	}
}

func TestVerify(t *testing.T) {
	v := newTestVerifier("arkomp")
	claims, err := v.Verify(sign(t, secret, jwt.SigningMethodHS256, validClaims()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "controller" || !claims.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := newTestVerifier("arkomp")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-time.Minute))
	noExp := validClaims()
	noExp.ExpiresAt = nil
	otherAud := validClaims()
	otherAud.Audience = jwt.ClaimStrings{"someone-else"}

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong secret":   sign(t, "other-secret", jwt.SigningMethodHS256, validClaims()),
		"wrong method":   sign(t, secret, jwt.SigningMethodHS512, validClaims()),
		"expired":        sign(t, secret, jwt.SigningMethodHS256, expired),
		"missing exp":    sign(t, secret, jwt.SigningMethodHS256, noExp),
		"wrong audience": sign(t, secret, jwt.SigningMethodHS256, otherAud),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			if apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
				t.Fatalf("code = %v, want %v (err=%v)", apperrors.CodeOf(err), apperrors.CodeUnauthenticated, err)
			}
		})
	}
}

func TestAudienceOptional(t *testing.T) {
	v := newTestVerifier("")
	claims := validClaims()
	claims.Audience = nil
	if _, err := v.Verify(sign(t, secret, jwt.SigningMethodHS256, claims)); err != nil {
		t.Fatalf("verify without audience: %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	if got := TokenFromRequest(r); got != "query-token" {
		t.Fatalf("token = %q, want query-token", got)
	}
	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r); got != "header-token" {
		t.Fatalf("token = %q, want header-token", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("token = %q, want empty", got)
	}
}

func TestRequire(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	var disabled *Verifier
	rec := httptest.NewRecorder()
	disabled.Require(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("disabled status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	v := newTestVerifier("arkomp")
	rec = httptest.NewRecorder()
	v.Require(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, secret, jwt.SigningMethodHS256, validClaims()))
	rec = httptest.NewRecorder()
	v.Require(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
