package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stock_watcher/internal/httpapi"
	"stock_watcher/migrations"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the reactivation HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var runCmd = &cobra.Command{
	Use:   "run <product-id>",
	Short: "Check one product now",
	Args:  cobra.ExactArgs(1),
	RunE:  runOnce,
}

var redeemCmd = &cobra.Command{
	Use:   "redeem <token>",
	Short: "Redeem a reactivation token",
	Args:  cobra.ExactArgs(1),
	RunE:  runRedeem,
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List the products due for a check",
	Args:  cobra.NoArgs,
	RunE:  runDue,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server := httpapi.NewServer(a.cfg.HTTP, httpapi.NewHandler(a.reactivation, a.db, a.logger), a.logger)

	a.logger.Info("starting stock watcher",
		"http_addr", a.cfg.HTTP.Addr,
		"tick", a.cfg.Scheduler.Tick,
		"workers", a.cfg.Scheduler.Workers,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	err = g.Wait()
	a.logger.Info("stock watcher stopped")
	return err
}

func runOnce(cmd *cobra.Command, args []string) error {
	productID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid product id %q: %w", args[0], err)
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.scrape.Run(ctx, productID)
	if err != nil {
		return err
	}
	return printJSON(outcome)
}

func runRedeem(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(a.reactivation.Outcome(ctx, args[0]))
}

func runDue(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	due, err := a.scheduler.DueProducts(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	return printJSON(due)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := connectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.Apply(ctx, db, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "applied", applied)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
