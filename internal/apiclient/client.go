package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ammar1510/gigchat/internal/logger"
)

var log = logger.New("apiclient")

const (
	// DefaultTimeout bounds a single attempt of a JSON call.
	DefaultTimeout = 30 * time.Second
	// DefaultUploadTimeout bounds a whole upload.
	DefaultUploadTimeout = 5 * time.Minute
	// DefaultMaxRetries caps retries after the initial attempt.
	DefaultMaxRetries = 3

	// maxResponseSize limits response body reads.
	maxResponseSize = 10 * 1024 * 1024
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is prefixed to every endpoint, e.g. "http://localhost:8080/api/v1".
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// DefaultTimeout applies when a call does not set its own. Zero means
	// DefaultTimeout.
	DefaultTimeout time.Duration
	// UploadTimeout applies to uploads that do not set their own. Zero
	// means DefaultUploadTimeout.
	UploadTimeout time.Duration
	// MaxRetries caps retries of transient failures. Zero means
	// DefaultMaxRetries; negative disables retries.
	MaxRetries int
	// Timer waits out backoff delays. Nil uses a real timer; tests inject
	// one that fires immediately.
	Timer backoff.Timer
}

// RequestConfig carries the per-call options.
type RequestConfig struct {
	// Token is sent as "Authorization: Bearer <token>" when non-empty.
	Token string
	// RetryCount is the number of retries already spent. The next backoff
	// delay is 2^RetryCount seconds.
	RetryCount int
	// Timeout bounds each attempt. Zero uses the client default.
	Timeout time.Duration
	// Headers are applied after the defaults and may override them.
	Headers map[string]string
}

// Client issues JSON requests against the marketplace API with a per-attempt
// timeout and bounded exponential backoff on transient failures.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	defaultTimeout time.Duration
	uploadTimeout  time.Duration
	maxRetries     int
	timer          backoff.Timer
}

// New creates a Client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("apiclient: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := config.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	uploadTimeout := config.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	maxRetries := config.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	return &Client{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		httpClient:     httpClient,
		defaultTimeout: timeout,
		uploadTimeout:  uploadTimeout,
		maxRetries:     maxRetries,
		timer:          config.Timer,
	}, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, opts RequestConfig) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, opts)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts RequestConfig) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body, opts)
}

// Put issues a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts RequestConfig) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body, opts)
}

// Patch issues a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts RequestConfig) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, body, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, opts RequestConfig) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, opts)
}

// Do performs a request and returns the response payload: nil for 204, the
// "data" member when the body is a JSON envelope that has one, otherwise the
// whole body (text bodies are returned as a JSON string).
//
// 5xx, 429 and transport failures are retried while the retry count is below
// the client's cap, waiting 2^retryCount seconds before each retry. Other
// failures, including the per-attempt timeout, are returned at once. Every
// error is an *APIError.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, opts RequestConfig) (json.RawMessage, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, &APIError{Message: MessageInvalidBody, Err: err}
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	retryCount := opts.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	remaining := c.maxRetries - retryCount
	if remaining < 0 {
		remaining = 0
	}

	var payload json.RawMessage
	operation := func() error {
		result, err := c.attempt(ctx, method, endpoint, encoded, opts, timeout)
		if err == nil {
			payload = result
			return nil
		}
		if retryable(err) && retryCount < c.maxRetries {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		retryCount++
		log.Warn("%s %s failed (%v), retry %d/%d in %s", method, endpoint, err, retryCount, c.maxRetries, wait)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(exponential(opts.RetryCount), uint64(remaining)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(operation, policy, notify, c.timer)
	if err == nil {
		return payload, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return nil, apiErr
	}
	// The only non-APIError is the caller's context ending during a wait.
	return nil, &APIError{Message: MessageCancelled, Err: err}
}

// exponential yields 2^start, 2^(start+1), ... seconds with no jitter and no
// elapsed-time limit; the retry cap is applied by WithMaxRetries.
func exponential(start int) backoff.BackOff {
	if start < 0 {
		start = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(math.Pow(2, float64(start))) * time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, encoded []byte, opts RequestConfig, timeout time.Duration) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, &APIError{Message: MessageInvalidBody, Err: err}
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if opts.Token != "" {
		request.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	for key, value := range opts.Headers {
		request.Header.Set(key, value)
	}

	log.Debug("%s %s", method, endpoint)
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, transportError(ctx, attemptCtx, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(ctx, attemptCtx, err)
	}

	return handleResponse(response, raw)
}

// transportError classifies a failure that produced no usable response.
func transportError(parent, attemptCtx context.Context, err error) *APIError {
	switch {
	case parent.Err() != nil:
		return &APIError{Message: MessageCancelled, Err: parent.Err()}
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return &APIError{StatusCode: http.StatusRequestTimeout, Message: MessageTimeout, Err: err}
	default:
		return &APIError{Message: "Network error: " + err.Error(), Err: err, network: true}
	}
}

// handleResponse turns a complete HTTP response into a payload or an
// *APIError.
func handleResponse(response *http.Response, raw []byte) (json.RawMessage, error) {
	parsed := parseBody(response.Header.Get("Content-Type"), raw)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: response.StatusCode,
			Message:    errorMessage(parsed),
			Data:       parsed,
		}
	}
	if response.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return unwrapEnvelope(parsed), nil
}

// parseBody returns JSON bodies as-is and everything else as a JSON string.
func parseBody(contentType string, raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if isJSON(contentType) && json.Valid(raw) {
		return json.RawMessage(raw)
	}
	text, _ := json.Marshal(string(raw))
	return text
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// unwrapEnvelope returns body.data when body is an object with a "data"
// member, else body.
func unwrapEnvelope(body json.RawMessage) json.RawMessage {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	if data, ok := envelope["data"]; ok {
		return data
	}
	return body
}

// errorMessage reads the "message" member of a JSON error body.
func errorMessage(body json.RawMessage) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return MessageRequestFailed
}

// Decode unmarshals a payload returned by one of the Client methods. It is
// shaped to wrap a call directly:
//
//	project, err := apiclient.Decode[models.Project](client.Get(ctx, path, opts))
func Decode[T any](payload json.RawMessage, err error) (T, error) {
	var value T
	if err != nil {
		return value, err
	}
	if len(payload) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, &APIError{Message: MessageInvalidPayload, Data: payload, Err: err}
	}
	return value, nil
}
