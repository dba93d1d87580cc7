// Package session identifies browsers with an anonymous signed cookie.
//
// The cookie holds an HS256 JWT whose subject is a random ID. There are no
// accounts; the ID only scopes the cart and notifications to one browser.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"
)

// CookieName is the name of the session cookie.
const CookieName = "plancart_session"

// DefaultLifetime is how long a session cookie stays valid.
const DefaultLifetime = 180 * 24 * time.Hour

// MinSecretLen is the minimum HMAC secret length in bytes.
const MinSecretLen = 32

const issuer = "plancart"

// Manager issues and verifies session cookies.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	secure   bool
}

// NewManager returns a Manager signing with secret.
//
// secure sets the Secure attribute on cookies and should be true when served
// over HTTPS.
func NewManager(secret []byte, lifetime time.Duration, secure bool) (*Manager, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLen)
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Manager{secret: secret, lifetime: lifetime, secure: secure}, nil
}

// Issue returns a signed token for id.
func (m *Manager) Issue(id ksid.ID, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": id.String(),
		"iss": issuer,
		"exp": now.Add(m.lifetime).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify returns the session ID carried by token.
func (m *Manager) Verify(token string) (ksid.ID, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return 0, errInvalidToken
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, errInvalidSubject
	}
	id, err := ksid.Parse(sub)
	if err != nil || id.IsZero() {
		return 0, errInvalidSubject
	}
	return id, nil
}

// Resolve returns the session of r, or a new one.
//
// When the request has no valid cookie a fresh ID is generated and a cookie
// is set on w. The returned bool reports whether the session is new.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (ksid.ID, bool, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, err := m.Verify(c.Value); err == nil {
			return id, false, nil
		}
	}
	id := ksid.NewID()
	now := time.Now()
	token, err := m.Issue(id, now)
	if err != nil {
		return 0, false, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(m.lifetime),
		MaxAge:   int(m.lifetime / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true, nil
}

var (
	errInvalidToken   = errors.New("invalid session token")
	errInvalidSubject = errors.New("invalid session subject")
)
