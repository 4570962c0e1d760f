// Package chiefpay is the typed client for the ChiefPay payment API: the
// HTTP endpoints and the Socket.IO push channel.
package chiefpay

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ChiefPay/chiefpay-go/providers"
	"github.com/ChiefPay/chiefpay-go/services/monitoring/logging"
	"github.com/ChiefPay/chiefpay-go/utils"
)

const DefaultHTTPTimeout = 30 * time.Second

type Options struct {
	APIKey  string
	BaseURL string
	// UserAgentSuffix is appended to the default User-Agent.
	UserAgentSuffix string
	// MaxRetries is the number of resends of a failed request. Zero means
	// providers.DefaultMaxRetries, negative disables retries.
	MaxRetries int
	// RetryStep overrides the linear backoff step.
	RetryStep time.Duration
	// HTTPClient is used as is when set. Otherwise the client owns one
	// with HTTPTimeout.
	HTTPClient  providers.Doer
	HTTPTimeout time.Duration
	Logger      *logging.Logger
}

func OptionsFromConfig(c utils.Config, logger *logging.Logger) Options {
	return Options{
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		UserAgentSuffix: c.UserAgentSuffix,
		MaxRetries:      c.MaxRetries,
		HTTPTimeout:     c.HTTPTimeout,
		Logger:          logger,
	}
}

// Client calls the ChiefPay HTTP API. It is safe for concurrent use.
type Client struct {
	providers.BaseProvider

	owned     *http.Client
	closeOnce sync.Once
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, providers.NewValidationError("api key is required", "apiKey")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = providers.DefaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	c := &Client{}
	doer := opts.HTTPClient
	if doer == nil {
		timeout := opts.HTTPTimeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		c.owned = &http.Client{Timeout: timeout}
		doer = c.owned
	}

	c.BaseProvider = providers.BaseProvider{
		Name:       ProviderName,
		BaseURL:    opts.BaseURL,
		APIKey:     opts.APIKey,
		UserAgent:  userAgent(opts.UserAgentSuffix),
		MaxRetries: opts.MaxRetries,
		RetryStep:  opts.RetryStep,
		Client:     doer,
		Logger:     opts.Logger,
	}
	return c, nil
}

func userAgent(suffix string) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return providers.DefaultUserAgent
	}
	return providers.DefaultUserAgent + " " + suffix
}

// NewIdempotencyKey returns a random key suitable for the idempotencyKey
// argument of the mutating calls.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

func (c *Client) GetRates(ctx context.Context) (*RatesResponse, error) {
	return providers.Send[RatesResponse](ctx, &c.BaseProvider, providers.Request{
		Method: http.MethodGet,
		Path:   ratesPath,
	})
}

func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, idempotencyKey string) (*Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return providers.Send[Invoice](ctx, &c.BaseProvider, providers.Request{
		Method:         http.MethodPost,
		Path:           invoicePath,
		Body:           req,
		IdempotencyKey: idempotencyKey,
	})
}

func (c *Client) CancelInvoice(ctx context.Context, req CancelInvoiceRequest, idempotencyKey string) (*Invoice, error) {
	if err := requireInvoiceRef(req); err != nil {
		return nil, err
	}
	return providers.Send[Invoice](ctx, &c.BaseProvider, providers.Request{
		Method:         http.MethodDelete,
		Path:           invoicePath,
		Body:           req,
		IdempotencyKey: idempotencyKey,
	})
}

func (c *Client) ProlongInvoice(ctx context.Context, req ProlongInvoiceRequest, idempotencyKey string) (*Invoice, error) {
	if err := requireInvoiceRef(req); err != nil {
		return nil, err
	}
	return providers.Send[Invoice](ctx, &c.BaseProvider, providers.Request{
		Method:         http.MethodPatch,
		Path:           invoicePath,
		Body:           req,
		IdempotencyKey: idempotencyKey,
	})
}

func requireInvoiceRef(ref InvoiceRef) error {
	return requireAtLeast(1, identifier{"id", ref.ID}, identifier{"orderId", ref.OrderID})
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	if err := requireAtLeast(1, identifier{"id", id}); err != nil {
		return nil, err
	}
	return providers.Send[Invoice](ctx, &c.BaseProvider, providers.Request{
		Method: http.MethodGet,
		Path:   invoicePath,
		Query:  url.Values{"id": {id}},
	})
}

func (c *Client) GetInvoicesHistory(ctx context.Context, from, to time.Time, limit int) (*InvoiceHistory, error) {
	return providers.Send[InvoiceHistory](ctx, &c.BaseProvider, providers.Request{
		Method: http.MethodGet,
		Path:   invoicesHistoryPath,
		Query:  historyQuery(from, to, limit),
	})
}

func (c *Client) GetTransactionsHistory(ctx context.Context, from, to time.Time, limit int) (*TransactionHistory, error) {
	return providers.Send[TransactionHistory](ctx, &c.BaseProvider, providers.Request{
		Method: http.MethodGet,
		Path:   transactionsHistoryPath,
		Query:  historyQuery(from, to, limit),
	})
}

// historyQuery passes limit through untouched; the server owns its range.
func historyQuery(from, to time.Time, limit int) url.Values {
	return url.Values{
		"fromDate": {from.Format(time.RFC3339Nano)},
		"toDate":   {to.Format(time.RFC3339Nano)},
		"limit":    {strconv.Itoa(limit)},
	}
}

func (c *Client) GetWallet(ctx context.Context, q WalletQuery) (*WalletResponse, error) {
	if err := requireAtLeast(1, identifier{"id", q.ID}, identifier{"orderId", q.OrderID}); err != nil {
		return nil, err
	}
	query := url.Values{}
	if q.ID != "" {
		query.Set("id", q.ID)
	} else {
		query.Set("orderId", q.OrderID)
	}
	return providers.Send[WalletResponse](ctx, &c.BaseProvider, providers.Request{
		Method: http.MethodGet,
		Path:   walletPath,
		Query:  query,
	})
}

func (c *Client) CreateWallet(ctx context.Context, req CreateWalletRequest, idempotencyKey string) (*WalletResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return providers.Send[WalletResponse](ctx, &c.BaseProvider, providers.Request{
		Method:         http.MethodPost,
		Path:           walletPath,
		Body:           req,
		IdempotencyKey: idempotencyKey,
	})
}

// Close releases idle connections of the HTTP client the Client created.
// A caller-supplied HTTPClient is left alone.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.owned != nil {
			c.owned.CloseIdleConnections()
		}
	})
	return nil
}
