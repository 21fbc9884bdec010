// Package transport is the client side of the two-hop setup: it posts a chat
// turn to a chatrelay HTTP endpoint and classifies the outcome.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	// DefaultEndpoint is where `chatrelay serve` listens by default.
	DefaultEndpoint = "http://localhost:8000/chat"

	// DefaultTimeout bounds one round trip, including the provider call
	// made by the server.
	DefaultTimeout = 5 * time.Minute
)

// ErrMissingReply is returned when a 2xx answer has no "reply" field.
var ErrMissingReply = errors.New("response has no reply field")

// Kind classifies a Result.
type Kind int

const (
	KindOK Kind = iota
	KindConnectionFailed
	KindHTTPError
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindConnectionFailed:
		return "connection_failed"
	case KindHTTPError:
		return "http_error"
	default:
		return "other"
	}
}

// Result is the outcome of one Send. Exactly one of its variants applies,
// selected by Kind.
type Result struct {
	Kind Kind

	// Reply is set for KindOK.
	Reply string

	// Status is set for KindHTTPError.
	Status int

	// Address is "<scheme>://<host>:<port>" of the endpoint, used in the
	// KindConnectionFailed text.
	Address string

	// Err is the underlying cause for every non-OK kind.
	Err error
}

// OK reports whether the endpoint produced a reply.
func (r Result) OK() bool {
	return r.Kind == KindOK
}

// Text renders the result for display. It never fails.
func (r Result) Text() string {
	switch r.Kind {
	case KindOK:
		return r.Reply
	case KindConnectionFailed:
		return "Error: Cannot connect to backend API. Make sure the chat server is running on " + r.Address
	case KindHTTPError:
		return fmt.Sprintf("Error: API request failed with status %d", r.Status)
	default:
		if r.Err == nil {
			return "Error: unknown failure"
		}
		return "Error: " + r.Err.Error()
	}
}

// Client posts chat turns to a fixed endpoint. It is safe for concurrent use.
type Client struct {
	endpoint   string
	address    string
	httpClient *http.Client
}

// NewClient creates a client for endpoint. An empty endpoint selects
// DefaultEndpoint and a non-positive timeout selects DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}

	return &Client{
		endpoint: endpoint,
		address:  displayAddress(u),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts {message, history} and classifies the outcome. Connection
// failures take precedence over HTTP status, which takes precedence over
// everything else.
func (c *Client) Send(ctx context.Context, message string, history llm.Conversation) Result {
	body, err := json.Marshal(llm.ChatRequest{Message: message, History: llm.Normalize(history)})
	if err != nil {
		return c.other(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return c.other(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isConnectionFailure(err) {
			return Result{Kind: KindConnectionFailed, Address: c.address, Err: err}
		}
		return c.other(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Kind:    KindHTTPError,
			Status:  resp.StatusCode,
			Address: c.address,
			Err:     fmt.Errorf("endpoint returned %d", resp.StatusCode),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.other(fmt.Errorf("read response: %w", err))
	}

	var out struct {
		Reply *string `json:"reply"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return c.other(fmt.Errorf("decode response: %w", err))
	}
	if out.Reply == nil {
		return c.other(ErrMissingReply)
	}

	return Result{Kind: KindOK, Reply: *out.Reply, Address: c.address}
}

// Chat is Send rendered for display.
func (c *Client) Chat(ctx context.Context, message string, history llm.Conversation) string {
	return c.Send(ctx, message, history).Text()
}

// Respond lets a Client act as a terminal chat backend.
func (c *Client) Respond(ctx context.Context, history llm.Conversation, message string) string {
	return c.Chat(ctx, message, history)
}

func (c *Client) other(err error) Result {
	return Result{Kind: KindOther, Address: c.address, Err: err}
}

// isConnectionFailure reports dial and name-resolution errors. Timeouts after
// the connection was established are not connection failures.
func isConnectionFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}

	return false
}

func displayAddress(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return u.Scheme + "://" + net.JoinHostPort(u.Hostname(), port)
}
