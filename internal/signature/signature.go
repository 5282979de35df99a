// Package signature authenticates provider webhook payloads.
//
// Two schemes are supported. Stripe signs the payload with HMAC-SHA256 and
// sends a timestamped Stripe-Signature header. Heleket sends
// md5(base64(body) + secret) in hex.
package signature

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"github.com/rookgm/storefront/internal/models"
	"github.com/stripe/stripe-go/v76/webhook"
	"strings"
)

// Scheme is webhook signing scheme
type Scheme uint8

const (
	SchemeStripe Scheme = iota + 1
	SchemeHeleket
)

func (s Scheme) String() string {
	switch s {
	case SchemeStripe:
		return "stripe"
	case SchemeHeleket:
		return "heleket"
	default:
		return "unknown"
	}
}

// Verify checks signature of raw request body.
// It returns models.ErrSignatureInvalid if the payload was not signed with secret
// and models.ErrPayloadMalformed if there is nothing to verify.
func Verify(scheme Scheme, body []byte, sig, secret string) error {
	if len(body) == 0 {
		return models.ErrPayloadMalformed
	}
	if secret == "" || sig == "" {
		return models.ErrSignatureInvalid
	}

	switch scheme {
	case SchemeStripe:
		// tolerance check is part of the scheme
		if err := webhook.ValidatePayload(body, sig, secret); err != nil {
			return fmt.Errorf("%w: %w", models.ErrSignatureInvalid, err)
		}
		return nil
	case SchemeHeleket:
		want := Sign(body, secret)
		got := strings.ToLower(strings.TrimSpace(sig))
		if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
			return models.ErrSignatureInvalid
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported scheme %d", models.ErrSignatureInvalid, scheme)
	}
}

// Sign returns Heleket signature for body
func Sign(body []byte, secret string) string {
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(body) + secret))
	return hex.EncodeToString(sum[:])
}
