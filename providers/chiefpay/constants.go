package chiefpay

const (
	ProviderName   = "chiefpay"
	DefaultBaseURL = "https://api.chiefpay.org"

	ratesPath               = "v1/rates"
	invoicePath             = "v1/invoice"
	invoicesHistoryPath     = "v1/history/invoices"
	transactionsHistoryPath = "v1/history/transactions"
	walletPath              = "v1/wallet"
)

// Socket event names.
const (
	EventNotification = "notification"
	EventRates        = "rates"
)

// Ack payload statuses sent back for events that request one.
const (
	ackSuccess = "success"
	ackError   = "error"
)
