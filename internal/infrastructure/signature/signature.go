// Package signature verifies HMAC-SHA256 webhook signatures over raw request bodies.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
)

// DefaultTolerance bounds how old a signed timestamp may be
const DefaultTolerance = 5 * time.Minute

// Sign returns the raw HMAC-SHA256 of the message parts
func Sign(secret string, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		_, _ = mac.Write(p)
	}
	return mac.Sum(nil)
}

// VerifyHex checks a hex encoded signature, optionally prefixed (e.g. "sha256=")
func VerifyHex(body []byte, provided, prefix, secret string) error {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return fmt.Errorf("%w: missing signature", domain.ErrInvalidSignature)
	}
	if prefix != "" {
		if !strings.HasPrefix(provided, prefix) {
			return fmt.Errorf("%w: unexpected signature scheme", domain.ErrInvalidSignature)
		}
		provided = strings.TrimPrefix(provided, prefix)
	}
	sig, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		return fmt.Errorf("%w: malformed signature", domain.ErrInvalidSignature)
	}
	if !hmac.Equal(sig, Sign(secret, body)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
	}
	return nil
}

// VerifyBase64 checks a standard base64 encoded signature
func VerifyBase64(body []byte, provided, secret string) error {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return fmt.Errorf("%w: missing signature", domain.ErrInvalidSignature)
	}
	sig, err := base64.StdEncoding.DecodeString(provided)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", domain.ErrInvalidSignature)
	}
	if !hmac.Equal(sig, Sign(secret, body)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
	}
	return nil
}

// VerifyTimestamped checks a "t=<unix>,v1=<hex>" header signed over
// "<t>.<body>". Any v1 entry may match, which allows secret rotation on the
// sender side. Timestamps outside the tolerance window are rejected.
func VerifyTimestamped(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return fmt.Errorf("%w: missing signature", domain.ErrInvalidSignature)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var (
		timestamp  string
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if sig, err := hex.DecodeString(value); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed signature header", domain.ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", domain.ErrInvalidSignature)
	}
	if err := CheckTimestamp(time.Unix(ts, 0), now, tolerance); err != nil {
		return err
	}

	expected := Sign(secret, []byte(timestamp), []byte("."), body)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
}

// CheckTimestamp rejects signed times further than tolerance from now
func CheckTimestamp(signedAt, now time.Time, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	skew := now.Sub(signedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
	}
	return nil
}

// TimestampedHeader builds a "t=<unix>,v1=<hex>" header. Used by senders and tests.
func TimestampedHeader(body []byte, secret string, at time.Time) string {
	t := strconv.FormatInt(at.Unix(), 10)
	return "t=" + t + ",v1=" + hex.EncodeToString(Sign(secret, []byte(t), []byte("."), body))
}
