package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Webhook headers shared with the ingestion side
const (
	HeaderProvider  = "X-Payment-Provider"
	HeaderSignature = "X-Webhook-Signature"
)

// Notifier delivers a provider webhook body to the ingestion endpoint
type Notifier interface {
	Notify(ctx context.Context, provider string, body []byte) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, provider string, body []byte) error

func (f NotifierFunc) Notify(ctx context.Context, provider string, body []byte) error {
	return f(ctx, provider, body)
}

// Signer produces the signature header value for a provider's webhook body
type Signer interface {
	Sign(provider string, body []byte) (string, error)
}

// HTTPNotifier posts signed webhooks back to this service, standing in for
// a real provider's callback.
type HTTPNotifier struct {
	client *http.Client
	url    string
	signer Signer
}

func NewHTTPNotifier(callbackURL string, signer Signer) *HTTPNotifier {
	return &HTTPNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    callbackURL,
		signer: signer,
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, provider string, body []byte) error {
	signature, err := n.signer.Sign(provider, body)
	if err != nil {
		return fmt.Errorf("sign webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderProvider, provider)
	req.Header.Set(HeaderSignature, signature)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected with status %d", resp.StatusCode)
	}
	return nil
}

type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, provider string, body []byte) error {
	log.Printf("[GATEWAY] %s webhook (no notifier configured): %s", provider, body)
	return nil
}
