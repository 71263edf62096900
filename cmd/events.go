/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/typoreporter/apiserver/config"
	"github.com/typoreporter/apiserver/internal/logging"
	"github.com/typoreporter/apiserver/internal/mq"
)

// eventsCmd groups account event tooling.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the account events channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(os.Stdout, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer queue.Close()

		err = queue.Subscribe(ctx, cfg.MQ.EventsChannel, logEvent(logger))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

func logEvent(logger logging.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		evt, err := mq.DecodeAccountEvent(msg)
		if err != nil {
			// Acking drops the message.
			logger.Warn(ctx, "skip malformed event", "message_id", msg.ID, "err", err)
			return nil
		}
		logger.Info(ctx, "account event",
			"type", evt.Type,
			"account_id", evt.AccountID,
			"email", evt.Email,
			"occurred_at", evt.OccurredAt,
		)
		return nil
	}
}
