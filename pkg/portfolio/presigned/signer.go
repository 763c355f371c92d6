// Package presigned issues and checks HMAC-signed, time-boxed URLs. Stores
// without native presigning (memory, fs) use it so that clients can upload
// assets straight to the server's /uploads endpoint and read them from /files.
package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC-signed URLs
type Signer struct {
	secretKey         []byte
	baseURL           string
	defaultExpiration time.Duration
	now               func() time.Time
}

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithBaseURL prefixes signed paths with an absolute origin, e.g. https://example.com
func WithBaseURL(base string) Option {
	return func(s *Signer) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithDefaultExpiration sets the lifetime used when SignURL gets a zero duration
func WithDefaultExpiration(d time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = d
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: 15 * time.Minute,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsEnabled returns true if a secret key is configured
func (s *Signer) IsEnabled() bool {
	return s != nil && len(s.secretKey) > 0
}

// SignURL signs method+path and returns the URL with signature and expires
// query parameters appended, prefixed with the base URL when one is set.
//
//	u, exp, err := signer.SignURL("PUT", "/uploads/drawings/a1/sketch.png", 10*time.Minute)
func (s *Signer) SignURL(method, path string, expiresIn time.Duration) (string, time.Time, error) {
	if !s.IsEnabled() {
		return "", time.Time{}, ErrNoSecretKey
	}
	if expiresIn <= 0 {
		expiresIn = s.defaultExpiration
	}
	expiresAt := s.now().Add(expiresIn).Truncate(time.Second)

	signature := s.sign(strings.ToUpper(method), path, expiresAt.Unix())

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	signed := fmt.Sprintf("%s%s%ssignature=%s&expires=%d", s.baseURL, path, separator, signature, expiresAt.Unix())
	return signed, expiresAt, nil
}

// ValidateRequest checks the signature and expiry carried in r's query string.
func (s *Signer) ValidateRequest(r *http.Request) error {
	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}
	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	path := r.URL.EscapedPath()
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	rest := url.Values{}
	for k, v := range query {
		if k != "signature" && k != "expires" {
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		path = path + "?" + rest.Encode()
	}

	return s.Validate(r.Method, path, signature, expiresAt)
}

// Validate checks a signature produced by SignURL.
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if !s.IsEnabled() {
		return ErrNoSecretKey
	}
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}
	expected := s.sign(strings.ToUpper(method), path, expiresAt)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// payload format: METHOD|PATH|EXPIRES
func (s *Signer) sign(method, path string, expiresAt int64) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(fmt.Sprintf("%s|%s|%d", method, path, expiresAt)))
	return hex.EncodeToString(h.Sum(nil))
}
