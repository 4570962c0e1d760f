package chiefpay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ChiefPay/chiefpay-go/models"
)

type Rate struct {
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

type RatesResponse = models.Response[[]Rate]

type CreateInvoiceRequest struct {
	Currency    string           `json:"currency" validate:"required"`
	Amount      decimal.Decimal  `json:"amount" validate:"required,gt=0"`
	Description string           `json:"description,omitempty"`
	OrderID     string           `json:"orderId,omitempty"`
	Accuracy    *decimal.Decimal `json:"accuracy,omitempty"`
	FeeIncluded *bool            `json:"feeIncluded,omitempty"`
	CallbackURL string           `json:"urlReturn,omitempty" validate:"omitempty,url"`
	SuccessURL  string           `json:"urlSuccess,omitempty" validate:"omitempty,url"`
}

// InvoiceRef identifies an invoice by its id, its merchant order id, or
// both. At least one must be set.
type InvoiceRef struct {
	ID      string `json:"id,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

type CancelInvoiceRequest = InvoiceRef

type ProlongInvoiceRequest = InvoiceRef

type CreateWalletRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// WalletQuery selects a wallet by id or order id. ID wins when both are set.
type WalletQuery struct {
	ID      string
	OrderID string
}

type Invoice = models.Response[InvoiceData]

type InvoiceData struct {
	ID             string           `json:"id"`
	OrderID        string           `json:"orderId"`
	Description    string           `json:"description,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	PaidAmount     decimal.Decimal  `json:"payedAmount"`
	FeeIncluded    bool             `json:"feeIncluded"`
	Accuracy       decimal.Decimal  `json:"accuracy"`
	FeeRate        decimal.Decimal  `json:"feeRate"`
	CreatedAt      time.Time        `json:"createdAt"`
	ExpiresAt      time.Time        `json:"expiredAt"`
	Status         string           `json:"status"`
	PaymentURL     string           `json:"url"`
	Addresses      []PaymentAddress `json:"addresses,omitempty"`
	SuccessURL     string           `json:"urlSuccess,omitempty"`
	CallbackURL    string           `json:"urlReturn,omitempty"`
	SupportLink    string           `json:"supportLink,omitempty"`
	MerchantAmount decimal.Decimal  `json:"merchantAmount"`
}

type PaymentAddress struct {
	Chain      string          `json:"chain"`
	Token      string          `json:"token"`
	MethodName string          `json:"methodName"`
	Address    string          `json:"address"`
	TokenRate  decimal.Decimal `json:"tokenRate"`
}

type LastTransaction struct {
	Chain         string `json:"chain"`
	TransactionID string `json:"txid"`
}

type InvoiceHistory = models.Response[InvoiceHistoryData]

type InvoiceHistoryData struct {
	Invoices   []InvoiceData `json:"invoices"`
	TotalCount int           `json:"totalCount"`
}

type TransactionHistory = models.Response[TransactionHistoryData]

type TransactionHistoryData struct {
	Transactions []Transaction `json:"transactions"`
	TotalCount   int           `json:"totalCount"`
}

type Transaction struct {
	TxID           string            `json:"txid"`
	Chain          string            `json:"chain"`
	Token          string            `json:"token"`
	Value          decimal.Decimal   `json:"value"`
	USD            decimal.Decimal   `json:"usd"`
	Fee            decimal.Decimal   `json:"fee"`
	Wallet         TransactionWallet `json:"wallet"`
	CreatedAt      time.Time         `json:"createdAt"`
	BlockCreatedAt time.Time         `json:"blockCreatedAt"`
	MerchantAmount decimal.Decimal   `json:"merchantAmount"`
}

type TransactionWallet struct {
	ID      int       `json:"id"`
	UUID    uuid.UUID `json:"uuid"`
	OrderID string    `json:"orderId"`
}

type WalletResponse = models.Response[Wallet]

type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   string          `json:"orderId"`
	Addresses []WalletAddress `json:"addresses"`
}

type WalletAddress struct {
	Chain     string          `json:"chain"`
	Token     string          `json:"token"`
	Address   string          `json:"address"`
	TokenRate decimal.Decimal `json:"tokenRate"`
}

// Rates is the payload of the "rates" socket event. On the wire it is a
// bare array of {name, rate} objects.
type Rates struct {
	Rates []Rate
}

func (r *Rates) UnmarshalJSON(data []byte) error {
	var rates []Rate
	if err := json.Unmarshal(data, &rates); err != nil {
		return errors.Wrap(err, "decode rates")
	}
	if rates == nil {
		rates = []Rate{}
	}
	r.Rates = rates
	return nil
}

func (r Rates) MarshalJSON() ([]byte, error) {
	if r.Rates == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Rates)
}

// Get returns the rate of the named asset.
func (r Rates) Get(name string) (decimal.Decimal, bool) {
	for _, rate := range r.Rates {
		if rate.Name == name {
			return rate.Rate, true
		}
	}
	return decimal.Decimal{}, false
}

// NotificationType is the server's tag for a notification. It is kept as
// sent; the payload that is present decides which field is set.
type NotificationType string

const (
	NotificationInvoice     NotificationType = "invoice"
	NotificationTransaction NotificationType = "transaction"
)

// Notification is the payload of the "notification" socket event. At least
// one of Invoice and Transaction is set.
type Notification struct {
	Type        NotificationType
	Invoice     *InvoiceData
	Transaction *SocketTransaction
}

type notificationWire struct {
	Type        NotificationType   `json:"type"`
	Invoice     *InvoiceData       `json:"invoice,omitempty"`
	Transaction *SocketTransaction `json:"transaction,omitempty"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var w notificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(err, "decode notification")
	}
	if w.Invoice == nil && w.Transaction == nil {
		return errors.Errorf("notification %q has neither invoice nor transaction", w.Type)
	}
	*n = Notification(w)
	return nil
}

// IsInvoice reports whether the notification carries an invoice update.
func (n Notification) IsInvoice() bool {
	return n.Invoice != nil
}

// IsTransaction reports whether the notification carries a transaction.
func (n Notification) IsTransaction() bool {
	return n.Transaction != nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationWire(n))
}

type SocketTransaction struct {
	TxID           string          `json:"txid"`
	Chain          string          `json:"chain"`
	Token          string          `json:"token"`
	Value          decimal.Decimal `json:"value"`
	USD            decimal.Decimal `json:"usd"`
	Fee            decimal.Decimal `json:"fee"`
	MerchantAmount decimal.Decimal `json:"merchantAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	BlockCreatedAt time.Time       `json:"blockCreatedAt"`
	Wallet         WalletDetails   `json:"wallet"`
}

type WalletDetails struct {
	ID      uuid.UUID `json:"id"`
	OrderID string    `json:"orderId"`
}
