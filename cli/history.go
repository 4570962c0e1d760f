package cli

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
)

const defaultHistoryWindow = 24 * time.Hour

func (a *app) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past invoices or transactions",
	}
	cmd.AddCommand(
		a.historyListCommand("invoices", "List invoices created in a time range",
			func(c *chiefpay.Client, ctx context.Context, from, to time.Time, limit int) (any, error) {
				return c.GetInvoicesHistory(ctx, from, to, limit)
			}),
		a.historyListCommand("transactions", "List transactions received in a time range",
			func(c *chiefpay.Client, ctx context.Context, from, to time.Time, limit int) (any, error) {
				return c.GetTransactionsHistory(ctx, from, to, limit)
			}),
	)
	return cmd
}

type historyCall func(c *chiefpay.Client, ctx context.Context, from, to time.Time, limit int) (any, error)

func (a *app) historyListCommand(use, short string, call historyCall) *cobra.Command {
	var (
		fromRaw string
		toRaw   string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := historyRange(fromRaw, toRaw, time.Now())
			if err != nil {
				return err
			}
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return call(c, cmd.Context(), from, to, limit)
			})
		},
	}
	cmd.Flags().StringVar(&fromRaw, "from", "", "start of the range, RFC3339 (default: 24h before --to)")
	cmd.Flags().StringVar(&toRaw, "to", "", "end of the range, RFC3339 (default: now)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of records")
	return cmd
}

func historyRange(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	to := now
	if toRaw != "" {
		t, err := time.Parse(time.RFC3339Nano, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "parse --to")
		}
		to = t
	}
	from := to.Add(-defaultHistoryWindow)
	if fromRaw != "" {
		t, err := time.Parse(time.RFC3339Nano, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "parse --from")
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("--from is after --to")
	}
	return from, to, nil
}
