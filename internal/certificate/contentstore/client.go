// Package contentstore uploads certificate artifacts to a content-addressed
// pinning endpoint (Pinata-compatible API). Each call is a single network
// round trip; retry is the orchestrator's responsibility because idempotency
// here is content-based, not request-based.
package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"skillchain/pkg/platform/circuit"
)

const (
	pinFilePath = "/pinning/pinFileToIPFS"
	pinJSONPath = "/pinning/pinJSONToIPFS"
)

// Error carries the upstream status and body of a failed upload so callers
// can distinguish auth failures from transient network faults.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("content store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("content store %s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config holds pinning endpoint configuration.
type Config struct {
	BaseURL string
	JWT     string
	// GatewayBaseURL is used to build public URIs from returned CIDs.
	GatewayBaseURL string
}

// Client is a pinning-endpoint client. Safe for concurrent use.
type Client struct {
	http    *resty.Client
	gateway string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a logger for breaker state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBreaker overrides the default circuit breaker, used to tune thresholds
// and cooldown.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// New creates a pinning client. The circuit breaker fails uploads fast while
// the endpoint is known to be down, so orchestrator retries do not pile onto
// a dead upstream; once the breaker's cooldown elapses, requests flow again
// and the circuit closes after consecutive successes.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetAuthToken(cfg.JWT),
		gateway: cfg.GatewayBaseURL,
		breaker: circuit.New("content-store"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// UploadBytes pins a raw artifact and returns its CID. Re-uploading identical
// bytes is safe: the CID is content-derived, so the store deduplicates.
func (c *Client) UploadBytes(ctx context.Context, payload []byte, name string) (string, error) {
	if c.breaker.IsOpen() {
		return "", &Error{Op: "pin file", Err: fmt.Errorf("circuit open, endpoint unavailable")}
	}

	var out pinResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(payload)).
		SetResult(&out).
		Post(pinFilePath)
	return c.finish("pin file", resp, &out, err)
}

// UploadJSON pins a JSON document and returns its CID.
func (c *Client) UploadJSON(ctx context.Context, doc any, name string) (string, error) {
	if c.breaker.IsOpen() {
		return "", &Error{Op: "pin json", Err: fmt.Errorf("circuit open, endpoint unavailable")}
	}

	var out pinResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"pinataContent":  doc,
			"pinataMetadata": map[string]string{"name": name},
		}).
		SetResult(&out).
		Post(pinJSONPath)
	return c.finish("pin json", resp, &out, err)
}

// GatewayURI builds the public URI for a CID.
func (c *Client) GatewayURI(cid string) string {
	return c.gateway + "/" + cid
}

func (c *Client) finish(op string, resp *resty.Response, out *pinResponse, err error) (string, error) {
	if err != nil {
		c.recordFailure()
		return "", &Error{Op: op, Err: err}
	}
	if resp.IsError() {
		c.recordFailure()
		return "", &Error{Op: op, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if out.IpfsHash == "" {
		c.recordFailure()
		return "", &Error{Op: op, StatusCode: resp.StatusCode(), Body: "missing IpfsHash in response"}
	}
	if closed := c.breaker.RecordSuccess(); closed && c.logger != nil {
		c.logger.Info("content store circuit closed")
	}
	return out.IpfsHash, nil
}

func (c *Client) recordFailure() {
	if opened := c.breaker.RecordFailure(); opened && c.logger != nil {
		c.logger.Warn("content store circuit opened")
	}
}
