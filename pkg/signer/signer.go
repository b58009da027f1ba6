// Package signer computes the authentication headers the Web API backend
// requires: the HMAC checksum header on service calls and HTTP Basic
// credentials on the token endpoint.
//
// The checksum header value is
//
//	<clientId> <timestamp> <base64(HMAC-SHA256(clientSecret, <path> + " " + <timestamp>))>
//
// where path is the request path including its query string exactly as sent,
// and timestamp is ISO-8601 with a numeric zone offset. The backend recomputes
// the MAC from the same inputs; any difference in the canonical string is a
// rejected request, never a local error.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/thejerf/abtime"

	"github.com/tendant/simple-valtuudet/pkg/errors"
)

const (
	// ChecksumHeaderName carries the checksum on every service call.
	ChecksumHeaderName = "X-AsiointivaltuudetAuthorization"

	// TimestampLayout is the timestamp format inside the canonical string.
	TimestampLayout = "2006-01-02T15:04:05-07:00"
)

// ChecksumHeader returns the checksum header value for path signed at the
// given instant. It is pure; the same inputs always give the same output.
func ChecksumHeader(clientID, clientSecret, path string, at time.Time) string {
	timestamp := at.Format(TimestampLayout)
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(path + " " + timestamp))
	return clientID + " " + timestamp + " " + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BasicAuthHeader returns "Basic " + base64(clientID:secret).
func BasicAuthHeader(clientID, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+secret))
}

// Signer binds the client credentials and a clock. It holds no mutable state
// and is safe for concurrent use.
type Signer struct {
	clientID     string
	clientSecret string
	clock        abtime.AbstractTime
}

// Option is a function that configures a Signer
type Option func(*Signer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock abtime.AbstractTime) Option {
	return func(s *Signer) {
		s.clock = clock
	}
}

// New creates a Signer. Missing credentials fail here, before any request.
func New(clientID, clientSecret string, opts ...Option) (*Signer, error) {
	if clientID == "" {
		return nil, errors.Configuration("client id is required for request signing")
	}
	if clientSecret == "" {
		return nil, errors.Configuration("client secret is required for request signing")
	}

	s := &Signer{
		clientID:     clientID,
		clientSecret: clientSecret,
		clock:        abtime.NewRealTime(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ClientID returns the id the signer signs for.
func (s *Signer) ClientID() string {
	return s.clientID
}

// Checksum signs path at the current time.
func (s *Signer) Checksum(path string) string {
	return ChecksumHeader(s.clientID, s.clientSecret, path, s.clock.Now())
}
