// Package cli is the chiefpay command line tool built on the SDK.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
	"github.com/ChiefPay/chiefpay-go/services/monitoring/logging"
	"github.com/ChiefPay/chiefpay-go/utils"
)

type app struct {
	envPath string
	out     io.Writer

	cfg *utils.Config
	log *logging.Logger
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "chiefpay",
		Short:         "ChiefPay API client",
		Long:          "Query rates, manage invoices and wallets, and follow payment notifications of a ChiefPay merchant account.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.envPath, "env-path", utils.EnvPath, "directory holding the .env file")

	root.AddCommand(
		a.ratesCommand(),
		a.invoiceCommand(),
		a.historyCommand(),
		a.walletCommand(),
		a.listenCommand(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := utils.LoadConfig(a.envPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := a.log.AttachSyslog(cfg.Papertrail, cfg.PapertrailAppName); err != nil {
		a.log.WithError(err).Warn("papertrail hook not attached")
	}
	a.log.WithField("config", cfg.Redact()).Debug("config loaded")
	return nil
}

func (a *app) client() (*chiefpay.Client, error) {
	return chiefpay.NewClient(chiefpay.OptionsFromConfig(*a.cfg, a.log))
}

// withClient runs fn with a client that is closed afterwards.
func (a *app) withClient(fn func(c *chiefpay.Client) (any, error)) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	v, err := fn(c)
	if err != nil {
		return err
	}
	return a.print(v)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
