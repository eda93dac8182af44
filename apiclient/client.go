package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-giftcard-verifier/models"
)

const (
	VerifyRequestPath = "/api/verify-request"
	ScanUploadPath    = "/api/scan-upload"
	HealthPath        = "/api/health"
	CheckPath         = "/api/check"
)

// ErrNetwork marks requests that could not complete at all.
var ErrNetwork = errors.New("network failure")

// RemoteError is a non-2xx answer. Message is the optional "message" field of
// the JSON body, surfaced verbatim to the user.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request rejected with status %d: %s", e.StatusCode, e.Message)
}

// Client defines the backend calls the workflows make
type Client interface {
	// RequestVerification relays a code for out-of-band verification
	RequestVerification(ctx context.Context, req models.VerifyRequest) error

	// UploadScan sends both captured card images
	UploadScan(ctx context.Context, req models.ScanUploadRequest) error
}

// HTTPClient implements the Client interface over JSON/HTTP
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new instance of HTTPClient
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPClient) RequestVerification(ctx context.Context, req models.VerifyRequest) error {
	slog.Debug("Sending verification request", "brand", req.Brand)
	return c.postJSON(ctx, VerifyRequestPath, req)
}

func (c *HTTPClient) UploadScan(ctx context.Context, req models.ScanUploadRequest) error {
	slog.Debug("Uploading scan", "brand", req.Brand, "mode", req.Mode, "front_size", len(req.Front), "back_size", len(req.Back))
	return c.postJSON(ctx, ScanUploadPath, req)
}

// CheckBalance runs a demo balance check. Rejections that carry a check body
// (bad input, rate limiting) are returned as a response, not an error.
func (c *HTTPClient) CheckBalance(ctx context.Context, cardType, code string) (models.CheckResponse, error) {
	jsonData, err := json.Marshal(models.CheckRequest{CardType: cardType, Code: code})
	if err != nil {
		return models.CheckResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CheckPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.CheckResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.CheckResponse{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests:
		var out models.CheckResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return models.CheckResponse{}, fmt.Errorf("failed to decode check response: %w", err)
		}
		slog.Debug("Check answered", "status", out.Status, "reference", out.Reference)
		return out, nil
	default:
		return models.CheckResponse{}, remoteError(resp)
	}
}

// HealthCheck verifies the backend is reachable
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return remoteError(resp)
	}

	slog.Info("Backend health check passed", "url", c.baseURL)
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Request did not complete", "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := remoteError(resp)
		slog.Warn("Request rejected", "path", path, "status_code", rerr.StatusCode, "message", rerr.Message)
		return rerr
	}

	slog.Debug("Request accepted", "path", path, "status_code", resp.StatusCode)
	return nil
}

// remoteError reads the optional {"message": ...} body of a failed response
func remoteError(resp *http.Response) *RemoteError {
	rerr := &RemoteError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return rerr
	}
	var decoded models.APIResponse
	if json.Unmarshal(body, &decoded) == nil {
		rerr.Message = decoded.Message
	}
	return rerr
}
