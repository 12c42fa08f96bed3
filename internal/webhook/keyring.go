package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/votepay/backend/internal/config"
	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/gateway"
)

const secretLength = 32

var _ gateway.Signer = (*Keyring)(nil)

// Keyring holds the webhook signing secret of every provider. A provider
// without a secret rejects every notification.
type Keyring struct {
	secrets map[string][]byte
}

// NewKeyring resolves provider secrets: an explicit per-provider secret wins,
// otherwise one is derived from the master secret with HKDF-SHA256.
func NewKeyring(cfg *config.PaymentsConfig) (*Keyring, error) {
	k := &Keyring{secrets: make(map[string][]byte)}

	for id, p := range cfg.Providers {
		switch {
		case p.WebhookSecret != "":
			k.secrets[id] = []byte(p.WebhookSecret)
		case cfg.WebhookSecret != "":
			secret, err := deriveSecret([]byte(cfg.WebhookSecret), id)
			if err != nil {
				return nil, fmt.Errorf("failed to derive webhook secret for %s: %w", id, err)
			}
			k.secrets[id] = secret
		default:
			log.Printf("[WEBHOOK] No webhook secret configured for %s, its notifications will be rejected", id)
		}
	}
	return k, nil
}

func deriveSecret(master []byte, provider string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, []byte("votepay-webhook:"+provider))
	secret := make([]byte, secretLength)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// Providers lists providers that have a secret
func (k *Keyring) Providers() []string {
	ids := make([]string, 0, len(k.secrets))
	for id := range k.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether provider is known to the keyring
func (k *Keyring) Has(provider string) bool {
	_, ok := k.secrets[provider]
	return ok
}

// Sign returns the hex HMAC-SHA256 of body under provider's secret
func (k *Keyring) Sign(provider string, body []byte) (string, error) {
	secret, ok := k.secrets[provider]
	if !ok {
		return "", fmt.Errorf("no webhook secret for provider %q", provider)
	}
	return hex.EncodeToString(computeMAC(secret, body)), nil
}

// Verify checks signature against body in constant time
func (k *Keyring) Verify(provider string, body []byte, signature string) error {
	secret, ok := k.secrets[provider]
	if !ok {
		return apperrors.ErrUnauthorized.WithDetails("no secret configured for provider")
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return apperrors.ErrUnauthorized.WithDetails("missing signature")
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return apperrors.ErrUnauthorized.WithDetails("malformed signature")
	}
	if !hmac.Equal(got, computeMAC(secret, body)) {
		return apperrors.ErrUnauthorized.WithDetails("signature mismatch")
	}
	return nil
}

func computeMAC(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
