package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("storage: invalid download token")
	ErrTokenExpired = errors.New("storage: download token expired")
)

// Claims is what a download token vouches for.
type Claims struct {
	Ref       string
	Path      string
	ExpiresAt time.Time
}

// Signer issues HMAC-signed download tokens of the form
// ref.expiry.base64(path).signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer; ttl defaults to one hour.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Signer) mac(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns a token for ref and path along with its expiry.
func (s *Signer) Sign(ref, path string) (string, time.Time, error) {
	if ref == "" || path == "" || strings.Contains(ref, ".") {
		return "", time.Time{}, fmt.Errorf("sign download token: ref and path required, ref must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("sign download token: signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(path))
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	payload := strings.Join([]string{ref, expiry, encoded}, ".")
	return payload + "." + s.mac(payload), expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *Signer) Verify(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Claims{}, ErrTokenInvalid
	}
	payload := strings.Join(parts[:3], ".")
	if len(s.secret) == 0 || !hmac.Equal([]byte(s.mac(payload)), []byte(parts[3])) {
		return Claims{}, ErrTokenInvalid
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	path, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	claims := Claims{Ref: parts[0], Path: string(path), ExpiresAt: time.Unix(unix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}
