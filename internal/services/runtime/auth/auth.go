// Package auth verifies bearer tokens presented on the control channel.
package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
)

// Claims are the validated claims of a control token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Verifier validates HS256 control tokens.
type Verifier struct {
	secret   []byte
	audience string
	now      func() time.Time
}

// NewVerifier returns a verifier for tokens signed with secret. A blank secret
// disables verification and yields a nil verifier.
func NewVerifier(secret, audience string) *Verifier {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret), audience: strings.TrimSpace(audience), now: time.Now}
}

// Verify parses and validates token.
func (v *Verifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "token is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var parsed jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return Claims{}, mapJWTError(err)
	}

	claims := Claims{Subject: parsed.Subject}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.New(apperrors.CodeUnauthenticated, "token is expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.New(apperrors.CodeUnauthenticated, "token signature is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return apperrors.New(apperrors.CodeUnauthenticated, "token audience is invalid")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return apperrors.New(apperrors.CodeUnauthenticated, "token exp is required")
	default:
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is invalid", err)
	}
}

// TokenFromRequest returns the bearer token from the Authorization header or,
// failing that, the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Require rejects requests without a valid token. A nil verifier lets every
// request through.
func (v *Verifier) Require(next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := v.Verify(TokenFromRequest(r)); err != nil {
			log.Printf("auth: rejected request path=%q remote=%q err=%v", r.URL.Path, r.RemoteAddr, err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
