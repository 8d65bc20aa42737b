package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"max.com/optpricer/pkg/quote"
)

var watchSubject string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print quotes published on NATS until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := watchSubject
		if subject == "" {
			subject = cfg.Sink.Subject
		}
		sub, err := quote.NewSubscriber(cfg.Sink.NATSURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		out := cmd.OutOrStdout()
		if err := sub.Subscribe(subject, func(q quote.Quote) error {
			_, err := fmt.Fprintf(out, "%d %s %s/%s K=%s price=%s %s\n",
				q.ID, q.Symbol, q.Right, q.Style, q.Strike, q.Price, q.PricedAt.Format("15:04:05.000"))
			return err
		}); err != nil {
			return err
		}

		<-cmd.Context().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSubject, "subject", "", "NATS subject (default from config)")
}
