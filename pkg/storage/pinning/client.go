package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mintaro-labs/mintaro-backend/pkg/config"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
)

const (
	pinFilePath  = "/pinning/pinFileToIPFS"
	pinJSONPath  = "/pinning/pinJSONToIPFS"
	authPath     = "/data/testAuthentication"
	pingTimeout  = 5 * time.Second
	maxErrorBody = 2048
)

// Client talks to a Pinata-compatible pinning gateway for
// content-addressed uploads.
type Client struct {
	httpClient *http.Client
	baseURL    string
	gatewayURL string
	apiKey     string
	apiSecret  string
	maxUpload  int64
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PinResult describes a pinned payload.
type PinResult struct {
	CID  string `json:"cid"`
	URI  string `json:"uri"`
	Size int64  `json:"size"`
}

// NewClient builds the pinning client and verifies credentials.
func NewClient(ctx context.Context, cfg config.PinningConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("pinning base url is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("pinning credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		maxUpload:  int64(cfg.MaxUploadMB) << 20,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinning health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "pinning client initialized")
	}

	return client, nil
}

// PinFile streams the file body to the gateway and returns its CID.
func (c *Client) PinFile(ctx context.Context, filename string, body io.Reader) (*PinResult, error) {
	if c == nil {
		return nil, errors.New("pinning client not initialized")
	}
	if filename == "" {
		return nil, errors.New("filename is required")
	}

	reader := body
	if c.maxUpload > 0 {
		reader = io.LimitReader(body, c.maxUpload+1)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	written, err := io.Copy(part, reader)
	if err != nil {
		return nil, fmt.Errorf("copying upload body: %w", err)
	}
	if c.maxUpload > 0 && written > c.maxUpload {
		return nil, fmt.Errorf("upload exceeds %d byte limit", c.maxUpload)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pinFilePath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	result, err := c.doPin(req)
	if err != nil {
		return nil, err
	}
	result.Size = written
	return result, nil
}

// PinJSON pins an arbitrary JSON document and returns its CID.
func (c *Client) PinJSON(ctx context.Context, payload any) (*PinResult, error) {
	if c == nil {
		return nil, errors.New("pinning client not initialized")
	}

	body, err := json.Marshal(map[string]any{"pinataContent": payload})
	if err != nil {
		return nil, fmt.Errorf("encoding pin payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pinJSONPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	result, err := c.doPin(req)
	if err != nil {
		return nil, err
	}
	result.Size = int64(len(body))
	return result, nil
}

// GatewayURI renders the public gateway address for a CID.
func (c *Client) GatewayURI(cid string) string {
	if c == nil || cid == "" {
		return ""
	}
	return c.gatewayURL + "/" + cid
}

// Ping verifies the configured credentials against the gateway.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("pinning client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authPath, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinning auth check failed: %s", resp.Status)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)
}

func (c *Client) doPin(req *http.Request) (*PinResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if len(b) > 0 {
			return nil, fmt.Errorf("pin request failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
		}
		return nil, fmt.Errorf("pin request failed: %s", resp.Status)
	}

	var pinResp struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pinResp); err != nil {
		return nil, fmt.Errorf("decoding pin response: %w", err)
	}
	if pinResp.IpfsHash == "" {
		return nil, errors.New("pin response missing content hash")
	}

	return &PinResult{
		CID: pinResp.IpfsHash,
		URI: "ipfs://" + pinResp.IpfsHash,
	}, nil
}
