package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	api "github.com/damitheswitch/exam-master/internal/api/http"
	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/config"
	"github.com/damitheswitch/exam-master/internal/db"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/report"
	"github.com/damitheswitch/exam-master/internal/session"
	"github.com/damitheswitch/exam-master/internal/store"
	syncx "github.com/damitheswitch/exam-master/internal/sync"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exam-master",
		Short: "Exam administration server",
	}
	serve := serveCmd()
	root.AddCommand(serve)

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	cmd.Flags().String("config", "", "Path to config file")
	return cmd
}

func setupLogger(cfg config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	var (
		st     store.Store
		events syncx.Recorder
		ready  func() error
	)
	switch cfg.StorageDriver {
	case "local":
		dir := cfg.StorageDSN
		if dir == "" {
			dir = cfg.DataDir
		}
		ls, err := store.NewLocalStore(dir)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		st = ls
		events = syncx.NewFileLog(dir, cfg.SiteID)
	case "sqlite", "postgres":
		dbh, err := db.Open(ctx, db.Driver(cfg.StorageDriver), cfg.StorageDSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbh.Close()
		st = store.NewSQLStore(dbh)
		events = syncx.NewEventRepo(dbh, cfg.SiteID)
		ready = dbh.Ping
	}

	if err := seedAdmin(ctx, st, cfg); err != nil {
		return err
	}

	authSvc := authmw.NewAuthService(cfg.AuthSecret, cfg.AccessTTL, cfg.RefreshTTL)
	sessions := session.NewManager(st, session.WithSessionOptions(session.WithEventRecorder(events)))
	defer sessions.Close()

	handler := api.NewRouter(api.Deps{
		Store:       st,
		Sessions:    sessions,
		Auth:        authSvc,
		Reports:     report.NewService(st, st),
		CORSOrigins: cfg.CORSOrigins,
		Ready:       ready,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// seedAdmin bootstraps the first admin account so a fresh install is
// reachable. It does nothing when no credentials are configured or the
// account already exists.
func seedAdmin(ctx context.Context, st store.Store, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := st.GetUserByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check admin account: %w", err)
	}
	hash, err := authmw.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	u := exam.User{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         exam.RoleAdmin,
		CreatedAt:    time.Now().Unix(),
	}
	if err := st.PutUser(ctx, u); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("seeded admin account", "email", cfg.AdminEmail)
	return nil
}
