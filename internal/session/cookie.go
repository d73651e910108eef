package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const (
	CookieName = "botsense_sid"
	CookieTTL  = 24 * time.Hour
)

// Signer signs session ids so a client cannot claim another session's
// persisted record.
type Signer struct {
	secret []byte
}

// NewSigner uses secret as the HMAC key. An empty secret gets a random key,
// which invalidates cookies on restart.
func NewSigner(secret string) *Signer {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &Signer{secret: key}
}

// Sign returns "id.signature".
func (s *Signer) Sign(id string) string {
	return id + "." + s.mac(id)
}

// Verify returns the id carried by a signed value.
func (s *Signer) Verify(value string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}
	id, sig := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(s.mac(id))) {
		return "", false
	}
	return id, true
}

func (s *Signer) mac(id string) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte("session-id:" + id))
	return hex.EncodeToString(m.Sum(nil))
}

// Cookie builds the session cookie for id.
func (s *Signer) Cookie(id string, now time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    s.Sign(id),
		Path:     "/",
		Expires:  now.Add(CookieTTL),
		MaxAge:   int(CookieTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest returns the verified session id from r's cookie, if present.
func (s *Signer) FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return s.Verify(c.Value)
}
