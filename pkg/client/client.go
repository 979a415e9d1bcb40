package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Client talks to the prokill HTTP API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Token    string // bearer token, sent when non-empty
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool   // Enable TLS
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

const defaultBaseURL = "http://127.0.0.1:8080/api"

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: defaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// New creates a new API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.TLS != nil && config.TLS.Enabled || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL: config.BaseURL,
		token:   config.Token,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// IsReachable checks if the API answers its health check
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("API unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode == http.StatusOK
	c.logger.Debug("API reachability check", "reachable", ok, "status", resp.StatusCode)
	return ok
}

// List returns a process listing
func (c *Client) List(ctx context.Context, opts ListOptions) (*Listing, error) {
	q := url.Values{}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Threshold > 0 {
		q.Set("threshold", strconv.FormatFloat(opts.Threshold, 'f', -1, 64))
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	u := c.baseURL + "/processes"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var out Listing
	if err := c.doRequest(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("Listed processes", "count", len(out.Processes))
	return &out, nil
}

// Find returns the live process with pid
func (c *Client) Find(ctx context.Context, pid uint32) (*Process, error) {
	var out Process
	if err := c.doRequest(ctx, http.MethodGet, c.pidURL(pid, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Killable asks the server whether pid may be terminated
func (c *Client) Killable(ctx context.Context, pid uint32) (*Killability, error) {
	var out Killability
	if err := c.doRequest(ctx, http.MethodGet, c.pidURL(pid, "/killable"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Kill sends SIGTERM, or SIGKILL when force is set, to pid. Refusals and
// delivery failures come back as *APIError carrying the error kind.
func (c *Client) Kill(ctx context.Context, pid uint32, force bool) (*KillResult, error) {
	c.logger.Debug("Requesting kill", "pid", pid, "force", force)
	u := c.pidURL(pid, "/kill")
	if force {
		u += "?force=true"
	}
	var out KillResult
	if err := c.doRequest(ctx, http.MethodPost, u, nil, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("Kill completed", "pid", pid, "name", out.Process.Name)
	return &out, nil
}

// Samples returns the recent usage samples of pid
func (c *Client) Samples(ctx context.Context, pid uint32) ([]Sample, error) {
	var out []Sample
	if err := c.doRequest(ctx, http.MethodGet, c.pidURL(pid, "/samples"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns up to limit recent kill events, newest first
func (c *Client) History(ctx context.Context, limit int) ([]Event, error) {
	u := c.baseURL + "/history"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	var out []Event
	if err := c.doRequest(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) pidURL(pid uint32, suffix string) string {
	return c.baseURL + "/processes/" + strconv.FormatUint(uint64(pid), 10) + suffix
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// doRequest performs an HTTP request and decodes a 2xx JSON body into out
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse turns a non-2xx response into an *APIError
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return apiErr
	}
	apiErr.Kind = errorResp.Kind
	apiErr.Message = errorResp.Error
	if errorResp.Message != "" {
		apiErr.Message = errorResp.Message
	}

	c.logger.Debug("API request failed", "error", apiErr.Message, "kind", apiErr.Kind, "status", resp.StatusCode)
	return apiErr
}
