package cli

import (
	"github.com/spf13/cobra"

	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
)

func (a *app) ratesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Print current exchange rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *chiefpay.Client) (any, error) {
				return c.GetRates(cmd.Context())
			})
		},
	}
}
