// Package signing issues and checks short-lived HMAC signed download links.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("link expired")
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature of bookID:expiresUnix.
func (s *Signer) Sign(bookID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", bookID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate compares the provided signature with the expected one in constant
// time. It does not look at the clock.
func (s *Signer) Validate(bookID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	expected := s.Sign(bookID, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Query returns the book, expires and signature parameters of a link to bookID
// valid for ttl after now.
func (s *Signer) Query(bookID string, now time.Time, ttl time.Duration) (url.Values, time.Time) {
	expires := now.Add(ttl).UTC().Truncate(time.Second)
	q := url.Values{}
	q.Set("book", bookID)
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("signature", s.Sign(bookID, expires.Unix()))
	return q, expires
}

// Verify checks the parameters produced by Query and returns the book id.
func (s *Signer) Verify(q url.Values, now time.Time) (string, error) {
	bookID, expires := q.Get("book"), q.Get("expires")
	if bookID == "" || !s.Validate(bookID, expires, q.Get("signature")) {
		return "", ErrInvalidSignature
	}
	exp, _ := strconv.ParseInt(expires, 10, 64)
	if now.Unix() > exp {
		return "", ErrExpired
	}
	return bookID, nil
}
