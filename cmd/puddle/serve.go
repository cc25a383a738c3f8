package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/puddle/internal/conversation"
	"github.com/zulandar/puddle/internal/db"
	"github.com/zulandar/puddle/internal/identity"
	"github.com/zulandar/puddle/internal/janitor"
	"github.com/zulandar/puddle/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Puddle web server",
		Long:  "Serves the marketplace pages and runs scheduled session cleanup until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedCategories(gormDB, cfg.Categories); err != nil {
		return err
	}

	sessions, err := identity.NewSessionManager(identity.SessionOpts{
		DB:     gormDB,
		Secret: cfg.Auth.Secret,
		TTL:    cfg.Auth.SessionTTL,
		Logger: &log,
	})
	if err != nil {
		return err
	}
	convs, err := conversation.NewStore(conversation.StoreOpts{DB: gormDB, Logger: &log})
	if err != nil {
		return err
	}
	jan, err := janitor.New(janitor.Opts{
		Pruner:   sessions,
		Schedule: cfg.Maintenance.PruneSchedule,
		Logger:   &log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopSignals := notifyShutdown(cmd.OutOrStdout(), cancel)
	defer stopSignals()

	janitorDone := jan.Start(ctx)
	defer func() { <-janitorDone }()
	defer cancel()

	if port <= 0 {
		port = cfg.Server.Port
	}
	return web.Start(ctx, web.StartOpts{
		Options: web.Options{
			DB:            gormDB,
			Sessions:      sessions,
			Conversations: convs,
			SiteName:      cfg.Site,
			CookieName:    cfg.Auth.CookieName,
			Logger:        &log,
		},
		Port: port,
		Out:  cmd.OutOrStdout(),
	})
}

// notifyShutdown calls cancel on SIGINT or SIGTERM. The returned stop
// releases the signal handler and waits for its goroutine to exit.
func notifyShutdown(out io.Writer, cancel context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
		<-exited
	}
}
