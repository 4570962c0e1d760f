package cli

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
)

func (a *app) invoiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Create, inspect, cancel and prolong invoices",
	}
	cmd.AddCommand(
		a.invoiceGetCommand(),
		a.invoiceCreateCommand(),
		a.invoiceRefCommand("cancel", "Cancel an invoice", (*chiefpay.Client).CancelInvoice),
		a.invoiceRefCommand("prolong", "Extend the lifetime of an invoice", (*chiefpay.Client).ProlongInvoice),
	)
	return cmd
}

func (a *app) invoiceGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return c.GetInvoice(cmd.Context(), args[0])
			})
		},
	}
}

func (a *app) invoiceCreateCommand() *cobra.Command {
	var (
		req            chiefpay.CreateInvoiceRequest
		amount         string
		accuracy       string
		feeIncluded    bool
		idempotencyKey string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if amount != "" {
				if req.Amount, err = decimal.NewFromString(amount); err != nil {
					return err
				}
			}
			if accuracy != "" {
				acc, err := decimal.NewFromString(accuracy)
				if err != nil {
					return err
				}
				req.Accuracy = &acc
			}
			if cmd.Flags().Changed("fee-included") {
				req.FeeIncluded = &feeIncluded
			}
			if idempotencyKey == "" {
				idempotencyKey = chiefpay.NewIdempotencyKey()
			}
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return c.CreateInvoice(cmd.Context(), req, idempotencyKey)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Currency, "currency", "", "invoice currency, e.g. USD")
	f.StringVar(&amount, "amount", "", "amount in the invoice currency")
	f.StringVar(&req.Description, "description", "", "text shown to the payer")
	f.StringVar(&req.OrderID, "order-id", "", "merchant order id")
	f.StringVar(&accuracy, "accuracy", "", "accepted underpayment fraction")
	f.BoolVar(&feeIncluded, "fee-included", false, "payer covers the network fee")
	f.StringVar(&req.CallbackURL, "callback-url", "", "URL the payer returns to")
	f.StringVar(&req.SuccessURL, "success-url", "", "URL the payer lands on after paying")
	f.StringVar(&idempotencyKey, "idempotency-key", "", "key for safe retries, random when empty")
	return cmd
}

type invoiceRefCall func(*chiefpay.Client, context.Context, chiefpay.InvoiceRef, string) (*chiefpay.Invoice, error)

func (a *app) invoiceRefCommand(use, short string, call invoiceRefCall) *cobra.Command {
	var (
		ref            chiefpay.InvoiceRef
		idempotencyKey string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if idempotencyKey == "" {
				idempotencyKey = chiefpay.NewIdempotencyKey()
			}
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return call(c, cmd.Context(), ref, idempotencyKey)
			})
		},
	}
	cmd.Flags().StringVar(&ref.ID, "id", "", "invoice id")
	cmd.Flags().StringVar(&ref.OrderID, "order-id", "", "merchant order id")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key for safe retries, random when empty")
	return cmd
}
