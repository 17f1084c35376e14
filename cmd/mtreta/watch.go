package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"mtreta/internal/config"
	"mtreta/internal/directory"
	"mtreta/internal/reconciler"
	"mtreta/internal/session"
	"mtreta/internal/terminal"
	"mtreta/pkg/mtrapi"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "show a live arrival board for one station in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "line", Aliases: []string{"l"}, Usage: "line code, e.g. TML", Required: true},
			&cli.StringFlag{Name: "station", Aliases: []string{"s"}, Usage: "station code, e.g. AUS", Required: true},
			&cli.DurationFlag{Name: "poll", Usage: "background refresh interval (overrides POLL_INTERVAL)"},
			&cli.StringFlag{Name: "policy", Usage: "refresh policy: keep-stale or replace (overrides REFRESH_POLICY)"},
			&cli.BoolFlag{Name: "verbose", Usage: "show DEBUG logging"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if d := c.Duration("poll"); d > 0 {
				cfg.PollInterval = d
			}
			if p := c.String("policy"); p != "" {
				policy, err := reconciler.ParseRefreshPolicy(p)
				if err != nil {
					return err
				}
				cfg.RefreshPolicy = policy
			}
			if c.Bool("verbose") {
				cfg.LogLevel = slog.LevelDebug
			}
			return watch(c.Context, cfg, c.String("line"), c.String("station"))
		},
	}
}

func watch(parent context.Context, cfg *config.Config, lineCode, stationCode string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	dir, err := directory.Load(cfg.DirectoryFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(uuid.New().String(), dir, mtrapi.New(cfg.MTRAPIBaseURL, cfg.UpstreamTimeout), terminal.NewPrinter(os.Stdout), session.Config{
		PollInterval:  cfg.PollInterval,
		ClockInterval: cfg.ClockInterval,
		Location:      cfg.Location,
		Reconciler:    cfg.ReconcilerOptions(),
	}, logger)
	go sess.Run(ctx)

	if err := sess.SelectLine(ctx, lineCode); err != nil {
		return fmt.Errorf("selecting line: %w", err)
	}
	if err := sess.SelectStation(ctx, stationCode); err != nil {
		return fmt.Errorf("selecting station: %w", err)
	}

	<-sess.Done()
	return nil
}
