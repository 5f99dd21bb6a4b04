package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer creates and validates payment gateway webhook signatures.
// A signature header has the form "t=<unix>,v1=<hex hmac>", where the HMAC
// covers "<unix>.<raw body>".
type Signer struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSigner constructs a signer with the provided secret and replay tolerance.
func NewSigner(secret string, tolerance time.Duration) *Signer {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Signer{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Sign returns the header value for body signed at the given time.
func (s *Signer) Sign(body []byte, at time.Time) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, s.mac(ts, body)), nil
}

// Verify checks header against body. Signatures older than the tolerance are rejected.
func (s *Signer) Verify(header string, body []byte) error {
	if len(s.secret) == 0 {
		return fmt.Errorf("signing secret missing")
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("invalid signature format")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp")
	}
	signedAt := time.Unix(unix, 0)
	if age := s.now().Sub(signedAt); age > s.tolerance || age < -s.tolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	expected := s.mac(ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (s *Signer) mac(ts string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ts))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
