package cli

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ChiefPay/chiefpay-go/providers/chiefpay"
)

type eventLine struct {
	Event      string    `json:"event"`
	ReceivedAt time.Time `json:"receivedAt"`
	Data       any       `json:"data"`
}

func (a *app) listenCommand() *cobra.Command {
	var events []string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print socket events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listen(cmd.Context(), events)
		},
	}
	cmd.Flags().StringSliceVar(&events, "events",
		[]string{chiefpay.EventNotification, chiefpay.EventRates}, "events to subscribe to")
	return cmd
}

func (a *app) listen(ctx context.Context, events []string) error {
	sopts := chiefpay.SocketOptionsFromConfig(*a.cfg)
	sopts.Observer = chiefpay.LogObserver(a.log)
	s, err := chiefpay.NewSocketClient(chiefpay.OptionsFromConfig(*a.cfg, a.log), sopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	var mu sync.Mutex
	enc := json.NewEncoder(a.out)
	emit := func(event string, data any) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(eventLine{Event: event, ReceivedAt: time.Now().UTC(), Data: data})
	}

	for _, event := range events {
		switch event {
		case chiefpay.EventNotification:
			s.OnNotification(func(_ context.Context, n chiefpay.Notification) error {
				return emit(event, n)
			})
		case chiefpay.EventRates:
			s.OnRates(func(_ context.Context, r chiefpay.Rates) error {
				return emit(event, r)
			})
		default:
			return errors.Errorf("unknown event %q", event)
		}
	}

	if err := s.Connect(ctx); err != nil {
		return err
	}
	a.log.WithField("url", s.Endpoint()).Info("listening for events")

	<-ctx.Done()
	return nil
}
