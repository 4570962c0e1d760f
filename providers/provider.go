package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/ChiefPay/chiefpay-go/services/monitoring/logging"
)

const (
	APIKeyHeader         = "x-api-key" // #nosec: it's a header name
	IdempotencyKeyHeader = "Idempotency-Key"

	DefaultUserAgent  = "ChiefPay-Go/1.0 (+https://chiefpay.org)"
	DefaultRetryStep  = 3 * time.Second
	DefaultMaxRetries = 5
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseProvider sends requests to one HTTP API and retries transient
// failures. It holds no per-call state and is safe for concurrent use.
type BaseProvider struct {
	Name      string
	BaseURL   string
	APIKey    string
	UserAgent string
	// MaxRetries is the number of resends after the first attempt.
	// Negative values are treated as zero.
	MaxRetries int
	// RetryStep is multiplied by the attempt number to get the wait
	// before the next attempt. Zero means DefaultRetryStep.
	RetryStep time.Duration
	Client    Doer
	Logger    *logging.Logger

	timer backoff.Timer
}

// Request describes one logical API call. The same Request is replayed
// unchanged on every retry.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Body           any
	IdempotencyKey string
}

// MakeRequest executes r and decodes a successful body into v.
// v may be nil to discard the body, *string or *[]byte to receive the raw
// body, or any JSON target. Failures are *APIError, except caller
// cancellation which is returned as ctx.Err().
func (p *BaseProvider) MakeRequest(ctx context.Context, r Request, v any) error {
	target, err := joinURL(p.BaseURL, r.Path, r.Query)
	if err != nil {
		return errors.Wrap(err, "build request url")
	}

	var payload []byte
	if r.Body != nil {
		payload, err = json.Marshal(r.Body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
	}

	log := p.logger().Component(p.name()).WithField("method", r.Method).WithField("path", r.Path)

	attempt := 0
	operation := func() error {
		attempt++
		return p.attempt(ctx, r, target, payload, v)
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("attempt", attempt).WithField("wait", wait).Warn("retrying request")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(p.retryStep()), p.retries()),
		ctx,
	)
	return backoff.RetryNotifyWithTimer(operation, policy, notify, p.timer)
}

// Send is MakeRequest with the result allocated for the caller.
func Send[T any](ctx context.Context, p *BaseProvider, r Request) (*T, error) {
	out := new(T)
	if err := p.MakeRequest(ctx, r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attempt performs a single round trip. Errors wrapped in
// backoff.Permanent stop the retry loop.
func (p *BaseProvider) attempt(ctx context.Context, r Request, target string, payload []byte, v any) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return backoff.Permanent(errors.Wrap(err, "create request"))
	}
	p.setHeaders(req, r, payload != nil)

	resp, err := p.Client.Do(req)
	if err != nil {
		return p.classifyNetworkError(ctx, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close() // No error handling intentionally
	}(resp.Body)

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return p.classifyNetworkError(ctx, err)
	}

	if isSuccess(resp.StatusCode) && len(content) > 0 {
		if err := decodeBody(content, v); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	apiErr := newAPIError(resp.StatusCode, statusText(resp), string(content))
	if isTransientStatus(resp.StatusCode) {
		return apiErr
	}
	return backoff.Permanent(apiErr)
}

func (p *BaseProvider) setHeaders(req *http.Request, r Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent())
	req.Header.Set(APIKeyHeader, p.APIKey)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.IdempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, r.IdempotencyKey)
	}
}

// classifyNetworkError separates caller cancellation, which is never
// retried, from timeouts the client hit on its own, which are.
func (p *BaseProvider) classifyNetworkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return backoff.Permanent(ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newNetworkError(err)
	}
	return backoff.Permanent(newNetworkError(err))
}

func decodeBody(content []byte, v any) error {
	switch out := v.(type) {
	case nil:
		return nil
	case *string:
		*out = string(content)
		return nil
	case *[]byte:
		*out = append([]byte(nil), content...)
		return nil
	default:
		if err := json.Unmarshal(content, v); err != nil {
			return errors.Wrap(err, "decode response body")
		}
		return nil
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func isTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status <= 599)
}

func statusText(resp *http.Response) string {
	if resp.Status == "" {
		return http.StatusText(resp.StatusCode)
	}
	// resp.Status is "404 Not Found"; keep the text part only.
	if len(resp.Status) > 4 && resp.Status[3] == ' ' {
		return resp.Status[4:]
	}
	return resp.Status
}

func (p *BaseProvider) retries() uint64 {
	if p.MaxRetries < 0 {
		return 0
	}
	return uint64(p.MaxRetries)
}

func (p *BaseProvider) retryStep() time.Duration {
	if p.RetryStep <= 0 {
		return DefaultRetryStep
	}
	return p.RetryStep
}

func (p *BaseProvider) userAgent() string {
	if p.UserAgent == "" {
		return DefaultUserAgent
	}
	return p.UserAgent
}

func (p *BaseProvider) name() string {
	if p.Name == "" {
		return "transport"
	}
	return p.Name
}

func (p *BaseProvider) logger() *logging.Logger {
	if p.Logger == nil {
		return logging.Discard()
	}
	return p.Logger
}

func joinURL(baseRaw string, pathRaw string, query url.Values) (string, error) {
	base, err := url.Parse(baseRaw)
	if err != nil {
		return "", err
	}

	rel, err := url.Parse(pathRaw)
	if err != nil {
		return "", err
	}
	if rel.IsAbs() {
		return "", errors.New("path must be relative URL")
	}
	res := base.JoinPath(rel.EscapedPath())

	q := res.Query()
	for k, vals := range rel.Query() {
		for _, v := range vals {
			q.Add(k, v)
		}
	}
	for k, vals := range query {
		for _, v := range vals {
			q.Add(k, v)
		}
	}
	res.RawQuery = q.Encode()

	return res.String(), nil
}
