package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultBaseURL      = "https://2captcha.com"
	DefaultMethod       = "hcaptcha"
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 3 * time.Minute

	notReady = "CAPCHA_NOT_READY"
)

var (
	// ErrMissingKey is returned when no API key was supplied.
	ErrMissingKey = errors.New("captcha API key is empty")

	// ErrTimeout is returned when the solver did not answer in time.
	ErrTimeout = errors.New("captcha not solved before timeout")
)

// Solver turns a captcha challenge into a response token.
type Solver interface {
	Solve(ctx context.Context, apiKey, siteKey, pageURL string) (string, error)
}

// APIError is an error code reported by the solving service.
type APIError struct {
	Code string
}

func (e *APIError) Error() string {
	return "captcha service error: " + e.Code
}

// Config holds the client settings.
type Config struct {
	BaseURL      string
	Method       string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client talks to a 2captcha-compatible HTTP API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client, filling unset config fields with defaults.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Method == "" {
		cfg.Method = DefaultMethod
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits the challenge and polls until a token is available.
func (c *Client) Solve(ctx context.Context, apiKey, siteKey, pageURL string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	id, err := c.submit(ctx, apiKey, siteKey, pageURL)
	if err != nil {
		return "", err
	}
	c.logger.Debug("Captcha submitted.", "task_id", id)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		token, ready, err := c.poll(ctx, apiKey, id)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTimeout
			}
			return "", err
		}
		if ready {
			c.logger.Debug("Captcha solved.", "task_id", id)
			return token, nil
		}
	}
}

func (c *Client) submit(ctx context.Context, apiKey, siteKey, pageURL string) (string, error) {
	form := url.Values{
		"key":     {apiKey},
		"method":  {c.cfg.Method},
		"sitekey": {siteKey},
		"pageurl": {pageURL},
		"json":    {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/in.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit captcha: %w", err)
	}
	if resp.Status != 1 {
		return "", &APIError{Code: resp.Request}
	}
	return resp.Request, nil
}

func (c *Client) poll(ctx context.Context, apiKey, id string) (string, bool, error) {
	query := url.Values{
		"key":    {apiKey},
		"action": {"get"},
		"id":     {id},
		"json":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/res.php?"+query.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to build poll request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", false, fmt.Errorf("failed to poll captcha %s: %w", id, err)
	}
	if resp.Status == 1 {
		return resp.Request, true, nil
	}
	if resp.Request == notReady {
		return "", false, nil
	}
	return "", false, &APIError{Code: resp.Request}
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
