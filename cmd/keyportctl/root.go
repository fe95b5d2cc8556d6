package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keyport/keyport/internal/custody"
	"github.com/keyport/keyport/internal/stamp"
)

var version = "dev" // set at build time using -ldflags

// custodyEnv is the part of the server configuration the custody commands need.
type custodyEnv struct {
	Host             string `env:"CUSTODY_API_HOST" envDefault:"https://api.turnkey.com"`
	PublicKey        string `env:"CUSTODY_API_PUBLIC_KEY,required,notEmpty"`
	PrivateKey       string `env:"CUSTODY_API_PRIVATE_KEY,required,notEmpty"`
	OrganizationID   string `env:"CUSTODY_ORGANIZATION_ID,required,notEmpty"`
	DefaultPublicKey string `env:"CUSTODY_DEFAULT_USER_PUBLIC_KEY"`
}

type rootOptions struct {
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "keyportctl",
		Short: "Keyport operator tool",
		Long: `keyportctl talks to the custody API with the server's API key and
manages the Keyport database.

Settings are read from the environment, or from a .env file in the
working directory, using the same variables as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read .env: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout for API and database calls")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newGenKeyCmd(),
		newWhoamiCmd(opts),
		newStampWhoamiCmd(),
		newCreateSubOrgCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func loadCustodyEnv() (*custodyEnv, error) {
	cfg := &custodyEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse custody settings: %w", err)
	}
	return cfg, nil
}

func newCustodyClient(cfg *custodyEnv, logger *slog.Logger) (*custody.Client, error) {
	stamper, err := stamp.NewAPIKeyStamper(cfg.PublicKey, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return custody.New(cfg.Host, stamper, custody.WithLogger(logger))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of keyportctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keyportctl %s\n", version)
		},
	}
}
