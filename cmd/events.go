/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexus-collab/apiserver/config"
	"github.com/nexus-collab/apiserver/internal/logging"
	"github.com/nexus-collab/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsChannel string

// eventsCmd groups commands that work with the feed event channel.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect feed events on the message queue",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the feed event channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is none; nothing to tail")
		}
		defer func() { _ = queue.Close() }()

		channel := eventsChannel
		if channel == "" {
			channel = cfg.MQ.Channel
		}
		logger.Info("tailing feed events", zap.String("channel", channel))

		err = queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
			event, err := mq.DecodeFeedEvent(msg)
			if err != nil {
				// Malformed payloads are acked so they are not redelivered forever.
				logger.Warn("dropping malformed event", zap.String("message_id", msg.ID), zap.Error(err))
				return nil
			}
			logger.Info("feed event",
				zap.String("type", event.Type),
				zap.Int("feed_id", event.FeedID),
				zap.Int("project_id", event.ProjectID),
				zap.Int("actor_id", event.ActorID),
				zap.Bool("is_notice", event.IsNotice),
				zap.Ints("file_ids", event.FileIDs),
				zap.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().StringVar(&eventsChannel, "channel", "", "channel to tail (defaults to MQ_FEED_CHANNEL)")
}
