package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"verdiff/internal/errors"
)

// Request outcomes passed to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeError   = "error"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body posted to /chat/completions.
type ChatRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	EnableThinking bool      `json:"enable_thinking"`
}

// ChatResponse is the subset of the completion response that is read.
type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Recorder observes every request attempt.
type Recorder interface {
	RecordLLMRequest(ctx context.Context, outcome string)
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	Model             string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// Client calls the completions endpoint.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	recorder Recorder
	backoff  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRecorder reports each attempt's outcome.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithBackoff sets the delay before the first retry; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// APIKeyFromEnv reads the key from the named environment variable.
func APIKeyFromEnv(name string) (string, error) {
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", errors.NewConfigError(fmt.Sprintf("environment variable %s is not set or empty", name), nil)
	}
	return key, nil
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError("llm api key is empty", nil)
	}
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.NewConfigError("llm base url and model are required", nil)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  slog.Default(),
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "llm"), slog.String("model", cfg.Model))
	return c, nil
}

// Complete sends the system and user prompts and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		EnableThinking: false,
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling request body: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	delay := c.backoff

	var lastErr *errors.AppError
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.record(ctx, OutcomeRetry)
			c.logger.WarnContext(ctx, "retrying chat completion",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		content, retryAfter, appErr, retryable := c.do(ctx, endpoint, body)
		if appErr == nil {
			c.record(ctx, OutcomeSuccess)
			c.logger.InfoContext(ctx, "chat completion received", slog.Int("chars", len(content)))
			return content, nil
		}
		lastErr = appErr
		if !retryable || ctx.Err() != nil {
			break
		}
		if retryAfter > delay {
			delay = retryAfter
		}
	}

	c.record(ctx, OutcomeError)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", lastErr
}

// do performs one attempt. It reports whether a failure may be retried and
// any Retry-After hint.
func (c *Client) do(ctx context.Context, endpoint string, body []byte) (string, time.Duration, *errors.AppError, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, errors.NewNetworkError("error creating request", err), false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, errors.NewNetworkError("error making request", err), true
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, errors.NewNetworkError("error reading response", err), true
	}

	if resp.StatusCode != http.StatusOK {
		appErr := errors.NewNetworkError(
			fmt.Sprintf("unexpected status code %d from chat completions", resp.StatusCode),
			fmt.Errorf("response body: %s", truncate(string(data), 512)),
		).WithContext("status", resp.StatusCode)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryAfter(resp.Header.Get("Retry-After")), appErr, retryable
	}

	var completion ChatResponse
	if err := json.Unmarshal(data, &completion); err != nil {
		return "", 0, errors.NewNetworkError("error unmarshalling response", err), false
	}
	if len(completion.Choices) == 0 {
		return "", 0, errors.NewNetworkError("chat completion returned no choices", nil), false
	}
	return completion.Choices[0].Message.Content, 0, nil, false
}

func (c *Client) record(ctx context.Context, outcome string) {
	if c.recorder != nil {
		c.recorder.RecordLLMRequest(ctx, outcome)
	}
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
