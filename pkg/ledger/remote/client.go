package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sentra-hq/anchor/pkg/ledger"
)

// Config contains configuration for the remote ledger client.
type Config struct {
	// BaseURL is the base URL of the ledger service (e.g. "http://ledger:8480").
	BaseURL string

	// Timeout bounds each ledger call. A registration that exceeds it is
	// treated as ledger unavailability, not a hard failure.
	// Default: 3 seconds
	Timeout time.Duration

	// MaxIdleConns is the connection pool size.
	// Default: 10
	MaxIdleConns int
}

// DefaultConfig returns the default remote client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      3 * time.Second,
		MaxIdleConns: 10,
	}
}

// Client implements the Ledger interface against a remote ledger service
// speaking the HTTP wire contract in this package. Transport failures and
// timeouts surface as UnavailableError so callers can take the local
// fallback path.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new remote ledger client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		return nil, ledger.NewInvalidInputError("base_url", "must not be empty")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	maxIdle := config.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}

	return &Client{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdle,
				MaxIdleConnsPerHost: maxIdle,
			},
		},
		logger: slog.Default().With("component", "ledger.remote"),
	}, nil
}

// Register submits a registration to the remote ledger.
func (c *Client) Register(ctx context.Context, fp ledger.Fingerprint, metadata, registrant string) (*ledger.Receipt, error) {
	body, err := json.Marshal(&RegisterRequest{
		Fingerprint: fp.Hex(),
		Metadata:    metadata,
		Registrant:  registrant,
	})
	if err != nil {
		return nil, ledger.NewStoreError("remote", "register", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/register", bytes.NewReader(body))
	if err != nil {
		return nil, ledger.NewStoreError("remote", "register", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all transient.
		return nil, ledger.NewUnavailableError("register", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		var out RegisterResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, ledger.NewStoreError("remote", "register", err)
		}
		return &ledger.Receipt{
			Fingerprint:  fp,
			Position:     out.Position,
			RegisteredAt: out.RegisteredAt,
			SubmissionID: out.SubmissionID,
		}, nil

	case resp.StatusCode == http.StatusConflict:
		return nil, &ledger.AlreadyRegisteredError{Fingerprint: fp}

	case resp.StatusCode == http.StatusBadRequest:
		return nil, ledger.NewInvalidInputError("request", c.errorMessage(resp.Body))

	case resp.StatusCode >= 500:
		return nil, ledger.NewUnavailableError("register",
			fmt.Errorf("ledger service returned status %d", resp.StatusCode))

	default:
		return nil, ledger.NewStoreError("remote", "register",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, c.errorMessage(resp.Body)))
	}
}

// Verify looks up a fingerprint in the remote ledger.
func (c *Client) Verify(ctx context.Context, fp ledger.Fingerprint) (*ledger.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/verify/"+fp.Hex(), nil)
	if err != nil {
		return nil, ledger.NewStoreError("remote", "verify", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ledger.NewUnavailableError("verify", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out RecordResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, ledger.NewStoreError("remote", "verify", err)
		}
		recordFP, err := ledger.ParseFingerprint(out.Fingerprint)
		if err != nil {
			return nil, ledger.NewStoreError("remote", "verify", err)
		}
		return &ledger.Record{
			Fingerprint:  recordFP,
			Metadata:     out.Metadata,
			Registrant:   out.Registrant,
			RegisteredAt: out.RegisteredAt,
			Position:     out.Position,
			SubmissionID: out.SubmissionID,
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, &ledger.NotFoundError{Fingerprint: fp}

	case resp.StatusCode >= 500:
		return nil, ledger.NewUnavailableError("verify",
			fmt.Errorf("ledger service returned status %d", resp.StatusCode))

	default:
		return nil, ledger.NewStoreError("remote", "verify",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, c.errorMessage(resp.Body)))
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// errorMessage extracts the message from an ErrorResponse body, falling back
// to the raw body when it is not JSON.
func (c *Client) errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var er ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Message != "" {
		return er.Message
	}
	return string(raw)
}
