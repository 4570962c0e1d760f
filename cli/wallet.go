package cli

import (
	"github.com/spf13/cobra"

	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
)

func (a *app) walletCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Look up or create static wallets",
	}

	var query chiefpay.WalletQuery
	get := &cobra.Command{
		Use:   "get",
		Short: "Print a wallet by id or order id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return c.GetWallet(cmd.Context(), query)
			})
		},
	}
	get.Flags().StringVar(&query.ID, "id", "", "wallet id")
	get.Flags().StringVar(&query.OrderID, "order-id", "", "merchant order id")

	var (
		req            chiefpay.CreateWalletRequest
		idempotencyKey string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a wallet bound to an order id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if idempotencyKey == "" {
				idempotencyKey = chiefpay.NewIdempotencyKey()
			}
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return c.CreateWallet(cmd.Context(), req, idempotencyKey)
			})
		},
	}
	create.Flags().StringVar(&req.OrderID, "order-id", "", "merchant order id")
	create.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key for safe retries, random when empty")

	cmd.AddCommand(get, create)
	return cmd
}
