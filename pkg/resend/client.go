package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/emrmusicgroup/tape16-api/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.resend.com"
	errorBodyReadLimit   int64 = 1024
	defaultClientTimeout       = 10 * time.Second
)

// Client wraps the Resend transactional-email REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Resend base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Resend client. Empty credentials are allowed:
// the client reports itself disabled and sends become silent no-ops,
// because notification is not on the issuance critical path.
func NewClient(apiKey, from string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		from:       strings.TrimSpace(from),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client
}

// Enabled reports whether the client holds the credentials needed to send.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != "" && c.from != ""
}

// Message is a single outbound email.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type sendRequest struct {
	From string `json:"from"`
	Message
}

// Send posts the message to Resend's send endpoint.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return pkgerrors.New(pkgerrors.CodeUnconfigured, "resend credentials missing")
	}

	body, err := json.Marshal(sendRequest{From: c.from, Message: msg})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode email payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build email request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "send email")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.New(pkgerrors.CodeUpstream,
			fmt.Sprintf("resend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	return nil
}
