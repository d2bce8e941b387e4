package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/vkovalenko/streamscribe/internal/audio"
)

// ClientConfig contains configuration for the HTTP inference client.
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	SampleRate int
	Timeout    time.Duration
	MaxRetries int
}

// Client implements Engine against a remote inference server. Audio windows
// are uploaded as mono PCM-16 WAV in a multipart form; a "task" field
// selects transcription versus language detection. Retries use exponential
// backoff and apply only to transient failures (5xx, 429, network errors).
type Client struct {
	config     ClientConfig
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// inferenceResponse is the JSON body returned by the inference server.
type inferenceResponse struct {
	Text      string             `json:"text"`
	Language  string             `json:"language,omitempty"`
	Languages map[string]float64 `json:"languages,omitempty"`
}

// httpError carries the status code so retryability is decided on the
// code, not on error message text.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.status, e.body)
}

// ClientStats represents client statistics.
type ClientStats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	TotalRetries    uint64  `json:"total_retries"`
}

// NewClient creates a new inference HTTP client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Decode implements Engine.
func (c *Client) Decode(ctx context.Context, samples []float32, language string) (string, error) {
	resp, err := c.request(ctx, "transcribe", samples, language)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// DetectLanguage implements Engine.
func (c *Client) DetectLanguage(ctx context.Context, samples []float32) (map[string]float64, error) {
	resp, err := c.request(ctx, "detect_language", samples, "")
	if err != nil {
		return nil, err
	}

	if len(resp.Languages) > 0 {
		return resp.Languages, nil
	}

	// Servers without probability output still name the top language.
	if resp.Language != "" {
		return map[string]float64{resp.Language: 1.0}, nil
	}

	return nil, fmt.Errorf("server returned no language information")
}

// request performs one task with retries and backoff.
func (c *Client) request(ctx context.Context, task string, samples []float32, language string) (*inferenceResponse, error) {
	c.incrementTotalRequests()

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.incrementFailedRequests()
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, task, samples, language)
		if err == nil {
			c.incrementSuccessRequests()
			return resp, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return nil, fmt.Errorf("%s failed after %d attempts: %w", task, c.config.MaxRetries+1, lastErr)
}

// doRequest performs a single HTTP request to the inference server.
func (c *Client) doRequest(ctx context.Context, task string, samples []float32, language string) (*inferenceResponse, error) {
	body, contentType, err := c.createMultipartRequest(task, samples, language)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "streamscribe/1.0")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{status: resp.StatusCode, body: string(respBody)}
	}

	var decoded inferenceResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return &decoded, nil
}

// createMultipartRequest builds the multipart/form-data body with the audio
// window as a WAV file plus the task parameters.
func (c *Client) createMultipartRequest(task string, samples []float32, language string) (io.Reader, string, error) {
	wav, err := audio.EncodeWAV(samples, c.config.SampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode audio: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"task":            task,
		"sample_rate":     fmt.Sprintf("%d", c.config.SampleRate),
		"response_format": "json",
	}

	if c.config.Model != "" {
		fields["model"] = c.config.Model
	}
	if language != "" {
		fields["language"] = language
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError determines if an error is worth retrying.
func isRetryableError(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.status >= 500 || he.status == http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Network-level failures surface from http.Client wrapped in url.Error;
	// treat them as transient.
	return errors.Is(err, io.ErrUnexpectedEOF) || isNetworkError(err)
}

func isNetworkError(err error) bool {
	var ne interface{ Temporary() bool }
	if errors.As(err, &ne) {
		return true
	}

	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout)
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
	}
}
