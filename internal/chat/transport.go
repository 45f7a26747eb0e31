package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultTimeout  = 60 * time.Second
	completionsPath = "/chat/completions"
)

// Transport performs one exchange with the completions endpoint. It is an
// explicit capability handed to each Client, never ambient global state,
// so conversations stay independent and tests can substitute a fake.
type Transport interface {
	Send(ctx context.Context, body []byte) ([]byte, error)
}

// Config carries the settings for the HTTP transport. APIKey is required;
// everything else has a default.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Validate applies defaults and fails with ErrMissingAPIKey when no
// credential is set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// HTTPTransport sends completion requests over HTTP with bearer auth.
type HTTPTransport struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHTTPTransport validates cfg and builds the transport.
func NewHTTPTransport(cfg Config) (*HTTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPTransport{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}, nil
}

// Send posts the request body to the completions endpoint and returns the
// raw response body. Network failures and non-2xx statuses come back as
// TransportError; timeouts are this layer's responsibility.
func (t *HTTPTransport) Send(ctx context.Context, body []byte) ([]byte, error) {
	url := t.baseURL + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
