package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrWebhookRejected indicates the receiver answered with a non-2xx status.
var ErrWebhookRejected = errors.New("notify: webhook rejected")

// WebhookClient posts signed event payloads to a configured endpoint. Calls
// run through a circuit breaker so a dead receiver stops consuming worker
// retries until it recovers.
type WebhookClient struct {
	URL     string
	Secret  string
	Client  *http.Client
	Breaker *gobreaker.CircuitBreaker[int]
}

// NewWebhookClient validates the endpoint URL and builds a client with an
// instrumented transport and a conservative breaker.
func NewWebhookClient(endpoint, secret string, timeout time.Duration) (*WebhookClient, error) {
	if err := validateURL(endpoint); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "order-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
		},
	})
	return &WebhookClient{
		URL:    endpoint,
		Secret: secret,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker: breaker,
	}, nil
}

// Deliver posts the event to the endpoint. The payload envelope and signature
// scheme match what storefront integrations already consume: HMAC-SHA256 over
// "<ts>.<eventID>.<body>" in the X-Signature header.
func (c *WebhookClient) Deliver(ctx context.Context, topic, eventID string, data any) error {
	if c == nil || c.Client == nil {
		return errors.New("notify: webhook client not configured")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal webhook data: %w", err)
	}
	envelope := struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    eventID,
		Topic:      topic,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal webhook envelope: %w", err)
	}
	ts := time.Now().Unix()

	_, err = c.Breaker.Execute(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "glow-api-webhooks/1.0")
		req.Header.Set("X-Event-ID", eventID)
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Signature", ComputeSignature(c.Secret, ts, eventID, body))
		resp, err := c.Client.Do(req)
		if err != nil {
			return 0, err
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			return resp.StatusCode, fmt.Errorf("%w: %s", ErrWebhookRejected, resp.Status)
		}
		return resp.StatusCode, nil
	})
	return err
}

// ComputeSignature calculates the webhook signature for the provided payload.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}
