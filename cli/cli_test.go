package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChiefPay/chiefpay-go/internal/chiefpaytest"
	"github.com/ChiefPay/chiefpay-go/providers"
	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
)

const testKey = "cli-key"

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupEnv(t *testing.T, srv *chiefpaytest.Server) {
	t.Helper()
	t.Setenv("CHIEFPAY_API_KEY", testKey)
	t.Setenv("CHIEFPAY_BASE_URL", srv.URL)
	t.Setenv("CHIEFPAY_LOG_LEVEL", "error")
	t.Setenv("CHIEFPAY_SOCKET_RECONNECTION_ATTEMPTS", "1")
	t.Setenv("CHIEFPAY_SOCKET_RECONNECTION_DELAY", "10ms")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	root := NewRootCommand(out)
	root.SetArgs(append(args, "--env-path", t.TempDir()))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRates(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)
	srv.Respond(http.MethodGet, "/v1/rates", []chiefpay.Rate{{Name: "BTC"}})

	out, err := run(t, "rates")
	require.NoError(t, err)

	var resp chiefpay.RatesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "BTC", resp.Data[0].Name)
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("CHIEFPAY_API_KEY", "")
	_, err := run(t, "rates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHIEFPAY_API_KEY")
}

func TestInvoiceCreate(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)
	srv.Respond(http.MethodPost, "/v1/invoice", chiefpay.InvoiceData{ID: "inv-9"})

	out, err := run(t, "invoice", "create",
		"--currency", "USD",
		"--amount", "12.30",
		"--order-id", "o-1",
		"--fee-included=false",
		"--idempotency-key", "k-1",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "inv-9"`)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "k-1", reqs[0].Header.Get(providers.IdempotencyKeyHeader))
	assert.JSONEq(t, `{"currency":"USD","amount":"12.3","orderId":"o-1","feeIncluded":false}`, string(reqs[0].Body))
}

func TestInvoiceCreateRejectsBadAmount(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)

	_, err := run(t, "invoice", "create", "--currency", "USD", "--amount", "ten")
	assert.Error(t, err)

	_, err = run(t, "invoice", "create", "--currency", "USD")
	var vErr *chiefpay.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Empty(t, srv.Requests())
}

func TestInvoiceGetCancelProlong(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)
	srv.Respond(http.MethodGet, "/v1/invoice", chiefpay.InvoiceData{ID: "inv-1"})
	srv.Respond(http.MethodDelete, "/v1/invoice", chiefpay.InvoiceData{ID: "inv-1", Status: "canceled"})
	srv.Respond(http.MethodPatch, "/v1/invoice", chiefpay.InvoiceData{ID: "inv-1"})

	_, err := run(t, "invoice", "get", "inv-1")
	require.NoError(t, err)
	out, err := run(t, "invoice", "cancel", "--id", "inv-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "canceled"`)
	_, err = run(t, "invoice", "prolong", "--order-id", "o-1")
	require.NoError(t, err)

	_, err = run(t, "invoice", "cancel")
	var vErr *chiefpay.ValidationError
	assert.ErrorAs(t, err, &vErr)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "inv-1", reqs[0].Query.Get("id"))
	assert.NotEmpty(t, reqs[1].Header.Get(providers.IdempotencyKeyHeader))
	assert.JSONEq(t, `{"orderId":"o-1"}`, string(reqs[2].Body))
}

func TestHistory(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)
	srv.Respond(http.MethodGet, "/v1/history/invoices", chiefpay.InvoiceHistoryData{TotalCount: 3})
	srv.Respond(http.MethodGet, "/v1/history/transactions", chiefpay.TransactionHistoryData{})

	_, err := run(t, "history", "invoices", "--from", "2024-01-01T00:00:00Z", "--to", "2024-01-02T00:00:00Z", "--limit", "10")
	require.NoError(t, err)
	_, err = run(t, "history", "transactions")
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "2024-01-01T00:00:00Z", reqs[0].Query.Get("fromDate"))
	assert.Equal(t, "2024-01-02T00:00:00Z", reqs[0].Query.Get("toDate"))
	assert.Equal(t, "10", reqs[0].Query.Get("limit"))
	assert.Equal(t, "100", reqs[1].Query.Get("limit"))
}

func TestHistoryRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	from, to, err := historyRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-24*time.Hour), from)

	_, _, err = historyRange("2024-06-02T00:00:00Z", "", now)
	assert.Error(t, err)

	_, _, err = historyRange("yesterday", "", now)
	assert.Error(t, err)
}

func TestWallet(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)
	srv.Respond(http.MethodGet, "/v1/wallet", chiefpay.Wallet{OrderID: "user-1"})
	srv.Respond(http.MethodPost, "/v1/wallet", chiefpay.Wallet{OrderID: "user-2"})

	out, err := run(t, "wallet", "get", "--order-id", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"orderId": "user-1"`)

	out, err = run(t, "wallet", "create", "--order-id", "user-2")
	require.NoError(t, err)
	assert.Contains(t, out, `"orderId": "user-2"`)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "user-1", reqs[0].Query.Get("orderId"))
	assert.JSONEq(t, `{"orderId":"user-2"}`, string(reqs[1].Body))
}

func TestListen(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)

	out := &syncBuffer{}
	root := NewRootCommand(out)
	root.SetArgs([]string{"listen", "--env-path", t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	select {
	case <-srv.Joined():
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("listen did not connect")
	}

	_, err := srv.Emit(chiefpay.EventRates, false, []map[string]any{{"name": "BTC", "rate": "1"}})
	require.NoError(t, err)
	_, err = srv.Emit(chiefpay.EventNotification, true, map[string]any{
		"type":    "invoice",
		"invoice": map[string]any{"id": "inv-1"},
	})
	require.NoError(t, err)

	select {
	case ack := <-srv.Acks():
		assert.JSONEq(t, `[{"status":"success"}]`, string(ack.Args))
	case <-time.After(5 * time.Second):
		t.Fatal("notification not acked")
	}

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not stop")
	}

	var events []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var l struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &l))
		events = append(events, l.Event)
	}
	assert.ElementsMatch(t, []string{chiefpay.EventRates, chiefpay.EventNotification}, events)
}

func TestListenRejectsUnknownEvent(t *testing.T) {
	srv := chiefpaytest.NewServer(testKey)
	defer srv.Close()
	setupEnv(t, srv)

	_, err := run(t, "listen", "--events", "rates,refunds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refunds")
}
