// Package cloudapi implements the Graph API transport used to send
// messages, mark them as read, and manage media.
//
// Outbound calls go through a circuit breaker and a rate limiter so a
// degraded vendor endpoint does not pile up handler goroutines. The core
// dispatcher never calls this package; handlers do.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Default client configuration constants.
const (
	// DefaultEndpoint is the Meta Graph API base URL.
	DefaultEndpoint = "https://graph.facebook.com"
	// DefaultAPIVersion is the Graph API version used for all calls.
	DefaultAPIVersion = "v19.0"
	// DefaultRequestTimeout bounds a single Graph API call.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultRateLimit is the outbound requests-per-second cap.
	DefaultRateLimit = 20
	// DefaultRateBurst is the outbound burst allowance.
	DefaultRateBurst = 40
	// DefaultBreakerFailureThreshold is the count of consecutive failures
	// after which the breaker opens.
	DefaultBreakerFailureThreshold = 5
	// DefaultBreakerOpenTimeout is how long the breaker stays open before
	// probing again.
	DefaultBreakerOpenTimeout = 30 * time.Second
)

// APIError is a structured send failure decoded from the Graph error body.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode,omitempty"`
	FBTraceID  string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error: status %d code %d (%s): %s", e.HTTPStatus, e.Code, e.Type, e.Message)
}

// Opts holds configuration options for the Graph API client.
type Opts struct {
	Endpoint   string
	APIVersion string
	HTTPClient *http.Client
	RateLimit  float64
	RateBurst  int
}

// Option defines a configuration option for the Graph API client.
type Option func(*Opts)

// WithEndpoint overrides the Graph API base URL (used in tests).
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) {
		o.Endpoint = endpoint
	}
}

// WithAPIVersion sets the Graph API version.
func WithAPIVersion(version string) Option {
	return func(o *Opts) {
		o.APIVersion = version
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// WithRateLimit caps outbound requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Opts) {
		o.RateLimit = rps
		o.RateBurst = burst
	}
}

// Client is the Graph API transport.
type Client struct {
	endpoint   string
	apiVersion string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewClient creates a Graph API client with the given bearer token,
// applying any provided options.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("whatsapp token is required")
	}
	cfg := Opts{
		Endpoint:   DefaultEndpoint,
		APIVersion: DefaultAPIVersion,
		RateLimit:  DefaultRateLimit,
		RateBurst:  DefaultRateBurst,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cloudapi",
		Timeout: DefaultBreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= DefaultBreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("CloudAPI breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	slog.Debug("CloudAPI NewClient", "endpoint", cfg.Endpoint, "api_version", cfg.APIVersion, "rate_limit", cfg.RateLimit)
	return &Client{
		endpoint:   cfg.Endpoint,
		apiVersion: cfg.APIVersion,
		token:      token,
		httpClient: cfg.HTTPClient,
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}, nil
}

// messagesURL returns the send endpoint for a business phone number id.
func (c *Client) messagesURL(phoneNumberID string) string {
	return fmt.Sprintf("%s/%s/%s/messages", c.endpoint, c.apiVersion, phoneNumberID)
}

// SendMessage posts one outbound payload to the /messages endpoint of the
// given business phone number. The payload is any of the models outbound
// shapes. The client does not retry; callers own SendFailure handling.
func (c *Client) SendMessage(ctx context.Context, phoneNumberID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode outbound payload: %w", err)
	}
	if err := c.post(ctx, c.messagesURL(phoneNumberID), body); err != nil {
		slog.Error("CloudAPI SendMessage failed", "error", err, "phone_number_id", phoneNumberID)
		return err
	}
	slog.Debug("CloudAPI SendMessage succeeded", "phone_number_id", phoneNumberID)
	return nil
}

// MarkAsRead marks an inbound message as read.
func (c *Client) MarkAsRead(ctx context.Context, phoneNumberID, messageID string) error {
	body, err := json.Marshal(models.NewReadReceipt(messageID))
	if err != nil {
		return fmt.Errorf("failed to encode read receipt: %w", err)
	}
	if err := c.post(ctx, c.messagesURL(phoneNumberID), body); err != nil {
		slog.Error("CloudAPI MarkAsRead failed", "error", err, "message_id", messageID)
		return err
	}
	return nil
}

// post sends a JSON body through the limiter and breaker.
func (c *Client) post(ctx context.Context, url string, body []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, decodeAPIError(resp)
		}
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	})
	return err
}

// decodeAPIError parses a Graph error body of the form {"error": {...}}.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{HTTPStatus: resp.StatusCode}
	var wrapper struct {
		Error *APIError `json:"error"`
	}
	data, err := io.ReadAll(resp.Body)
	if err == nil && json.Unmarshal(data, &wrapper) == nil && wrapper.Error != nil {
		wrapper.Error.HTTPStatus = resp.StatusCode
		return wrapper.Error
	}
	apiErr.Message = string(data)
	return apiErr
}
