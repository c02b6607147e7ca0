package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/vedran77/pulsefeed/internal/config"
	"github.com/vedran77/pulsefeed/internal/feed"
	"github.com/vedran77/pulsefeed/internal/history"
	"github.com/vedran77/pulsefeed/internal/live"
	"github.com/vedran77/pulsefeed/internal/logging"
	"github.com/vedran77/pulsefeed/internal/names"
	"github.com/vedran77/pulsefeed/internal/tui"
	"go.uber.org/zap"
)

const defaultLogFile = "feed.log"

func main() {
	if err := newFeedCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newFeedCommand() *cobra.Command {
	var (
		historyURL string
		liveURL    string
		token      string
		logFile    string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "feed <conversation-id>",
		Short: "Follow a conversation in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("history-url") {
				cfg.Feed.HistoryURL = historyURL
			}
			if cmd.Flags().Changed("live-url") {
				cfg.Feed.LiveURL = liveURL
			}
			if cmd.Flags().Changed("token") {
				cfg.Feed.Token = token
			}

			level := cfg.LogLevel
			if debug {
				level = "debug"
			}
			if logFile == "" {
				logFile = cfg.LogFile
			}
			if logFile == "" {
				logFile = defaultLogFile
			}
			// the terminal belongs to the UI
			logger, err := logging.New("json", level, logFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runFeed(cmd.Context(), cfg, args[0], logger)
		},
	}

	cmd.Flags().StringVar(&historyURL, "history-url", "", "Base URL of the history API (overrides FEED_HISTORY_URL)")
	cmd.Flags().StringVar(&liveURL, "live-url", "", "WebSocket URL of the live channel (overrides FEED_LIVE_URL)")
	cmd.Flags().StringVar(&token, "token", "", "Access token (overrides FEED_TOKEN)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file (default "+defaultLogFile+")")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runFeed(parent context.Context, cfg *config.Config, conversationID string, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := history.NewFetcher(cfg.Feed.HistoryURL, cfg.Feed.HistoryPath, cfg.Feed.PageSize,
		history.WithToken(cfg.Feed.Token),
	)

	liveOpts := []live.Option{live.WithLogger(logger)}
	if cfg.Feed.Token != "" {
		liveOpts = append(liveOpts, live.WithToken(cfg.Feed.Token))
	}
	source, err := live.Dial(ctx, cfg.Feed.LiveURL, liveOpts...)
	if err != nil {
		return fmt.Errorf("connecting to live channel: %w", err)
	}
	defer source.Close()

	var program *tea.Program
	synchronizer := feed.NewSynchronizer(conversationID, fetcher, source, names.NewGenerator(),
		feed.WithPageSize(cfg.Feed.PageSize),
		feed.WithDebounce(cfg.Feed.DebounceWindow),
		feed.WithLogger(logger),
		feed.WithUpdateHandler(func(u feed.Update) {
			program.Send(tui.UpdateMsg{Update: u})
		}),
	)
	defer synchronizer.Close()

	model := tui.New("#"+conversationID, synchronizer, cfg.Feed.AutoScrollThreshold, logger)
	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	go func() {
		if err := synchronizer.Open(ctx); err != nil {
			program.Send(tui.ErrMsg{Err: err})
		}
	}()
	go func() {
		select {
		case <-source.Done():
			program.Send(tui.ErrMsg{Err: live.ErrClosed})
		case <-ctx.Done():
		}
	}()

	_, err = program.Run()
	synchronizer.Close()
	model.Controller().Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("running feed: %w", err)
	}
	return nil
}
