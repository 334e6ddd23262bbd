package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heyfriend/landing/internal/auth"
	"github.com/heyfriend/landing/internal/config"
	"github.com/heyfriend/landing/internal/export"
	"github.com/heyfriend/landing/internal/repository/sqldb"
	"github.com/heyfriend/landing/internal/server"
	"github.com/heyfriend/landing/internal/service"
)

// setup loads config and installs the configured logger as the default,
// so packages that log through slog.Default (sqldb migrations) match.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Logger, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	// Fail closed: no admin secret, no server.
	verifier, err := auth.NewSecretVerifier(cfg.Admin)
	if err != nil {
		return err
	}
	if verifier.Source() == auth.SourcePlaintext && cfg.HTTP.Environment == "production" {
		logger.Warn("admin secret configured as plaintext; consider ADMIN_PASSWORD_HASH")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqldb.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg.HTTP, db, verifier, logger)
	if err != nil {
		db.Close()
		return err
	}

	// Start closes db on return.
	return srv.Start(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	dbCfg := cfg.DB
	dbCfg.Automigrate = false
	db, err := sqldb.Open(cmd.Context(), dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Initialize(cmd.Context()); err != nil {
		return err
	}
	logger.Info("schema is up to date", slog.String("database", db.Backend()))
	return nil
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all subscribers as CSV to stdout or --out",
		Long: "Write all subscribers, newest first, as CSV.\n\n" +
			"Reads the database directly; no admin password is needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func runExport(ctx context.Context, out string, stdout io.Writer) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	db, err := sqldb.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	subs, err := service.NewSubscriberService(db, logger).List(ctx)
	if err != nil {
		return err
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("export: creating %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteCSV(w, subs); err != nil {
		return err
	}
	logger.Info("export complete", slog.Int("count", len(subs)), slog.String("out", out))
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Long: "Read a password from stdin and print a bcrypt hash suitable for\n" +
			"ADMIN_PASSWORD_HASH, so the plaintext never has to live in the environment.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("reading password: %w", err)
			}

			hash, err := auth.HashSecret(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
