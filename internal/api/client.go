package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"lethe_console/internal/logging"
	"lethe_console/internal/status"
)

const (
	publicPrefix = "/api/v1/public"

	PathDashboard     = publicPrefix + "/dashboard"
	PathEncryptStatus = publicPrefix + "/encrypt/status"
	PathWipeStatus    = publicPrefix + "/wipe/status"
	PathDisks         = publicPrefix + "/getdisks"
	PathLogs          = publicPrefix + "/logsfull"
	PathProfile       = publicPrefix + "/profile"
	PathWipeStart     = publicPrefix + "/wipe/start"
	PathEncryptStart  = publicPrefix + "/encrypt/start"

	// тело ответа с ошибкой обрезается до этого размера
	maxErrorBody = 512
)

// Client клиент REST API backend LETHE
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.EnterpriseLogger
}

// NewClient создаёт клиент; timeout ограничивает каждый запрос
func NewClient(baseURL string, timeout time.Duration, logger *logging.EnterpriseLogger) *Client {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL адрес backend
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Dashboard GET /dashboard
func (c *Client) Dashboard(ctx context.Context) (*status.DashboardSnapshot, error) {
	var resp status.DashboardResponse
	if err := c.get(ctx, PathDashboard, &resp); err != nil {
		return nil, err
	}
	if resp.PhysicalDisks == nil {
		return nil, errors.Mark(errors.New("dashboard response has no physical_disks"), ErrParse)
	}
	return resp.PhysicalDisks, nil
}

// EncryptionStatus GET /encrypt/status
func (c *Client) EncryptionStatus(ctx context.Context) (*status.EncryptionStatus, error) {
	var resp status.EncryptionStatus
	if err := c.get(ctx, PathEncryptStatus, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WipeStatus GET /wipe/status
func (c *Client) WipeStatus(ctx context.Context) (*status.DoDWipeStatus, error) {
	var resp status.DoDWipeStatus
	if err := c.get(ctx, PathWipeStatus, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Disks GET /getdisks
func (c *Client) Disks(ctx context.Context) ([]status.Disk, error) {
	var resp status.DisksResponse
	if err := c.get(ctx, PathDisks, &resp); err != nil {
		return nil, err
	}
	return resp.PhysicalDisks, nil
}

// Logs GET /logsfull
func (c *Client) Logs(ctx context.Context) (*status.LogsReport, error) {
	var resp status.LogsReport
	if err := c.get(ctx, PathLogs, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile GET /profile
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var resp Profile
	if err := c.get(ctx, PathProfile, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartWipe POST /wipe/start
func (c *Client) StartWipe(ctx context.Context, req WipeRequest) (*StartResponse, error) {
	var resp StartResponse
	if err := c.post(ctx, PathWipeStart, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartEncryption POST /encrypt/start
func (c *Client) StartEncryption(ctx context.Context, req EncryptRequest) (*StartResponse, error) {
	var resp StartResponse
	if err := c.post(ctx, PathEncryptStart, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrapf(err, "cannot build request for %s", path)
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "cannot encode request for %s", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "cannot build request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "request %s %s failed", req.Method, path), ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "cannot read response of %s", path), ErrNetwork)
	}

	c.logger.Entry().WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(started).String(),
	}).Debug("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: text}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// start команды могут отвечать пустым телом
		if req.Method == http.MethodPost {
			return nil
		}
		return errors.Mark(errors.Newf("empty response from %s", path), ErrParse)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Mark(errors.Wrapf(err, "cannot decode response of %s", path), ErrParse)
	}
	return nil
}
