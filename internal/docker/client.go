// Package docker talks to the Docker Engine API over its unix socket. It
// runs installer containers and backs the volume registry with
// bind-mounted docker volumes.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSocket is the daemon socket used when none is configured.
const DefaultSocket = "/var/run/docker.sock"

// DefaultAPIVersion pins the Engine API so responses keep their shape
// across daemon upgrades.
const DefaultAPIVersion = "v1.43"

// ClientConfig holds the parameters for creating a new Client.
type ClientConfig struct {
	// Socket is a unix socket path, or a tcp://host:port address.
	Socket     string
	APIVersion string
	Timeout    time.Duration
}

// Client is an HTTP client for the Docker Engine API.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
}

// NewClient creates a new Docker Engine API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	socket := cfg.Socket
	if socket == "" {
		socket = DefaultSocket
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{version: version, httpClient: &http.Client{Timeout: timeout}}
	switch {
	case strings.HasPrefix(socket, "tcp://"):
		c.baseURL = "http://" + strings.TrimPrefix(socket, "tcp://")
	case strings.HasPrefix(socket, "unix://") || strings.HasPrefix(socket, "/"):
		path := strings.TrimPrefix(socket, "unix://")
		c.baseURL = "http://docker"
		c.httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		}
	default:
		return nil, fmt.Errorf("docker socket %q must be an absolute path or tcp:// address", socket)
	}
	return c, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "/_ping", nil, nil, nil); err != nil {
		return fmt.Errorf("pinging docker daemon: %w", err)
	}
	return nil
}

// Info is the subset of GET /info the service reports.
type Info struct {
	ServerVersion     string `json:"ServerVersion"`
	OperatingSystem   string `json:"OperatingSystem"`
	Containers        int    `json:"Containers"`
	ContainersRunning int    `json:"ContainersRunning"`
	Images            int    `json:"Images"`
	Driver            string `json:"Driver"`
}

// Info returns daemon details.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.doRequest(ctx, http.MethodGet, "/info", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("reading docker info: %w", err)
	}
	return &info, nil
}

// doRequest performs a JSON request against the Engine API. body, when
// non-nil, is sent as JSON; result, when non-nil, receives the decoded
// response.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	reqURL := c.baseURL + "/" + c.version + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &DockerError{StatusCode: resp.StatusCode}
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Message = envelope.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
