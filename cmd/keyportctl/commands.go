package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"

	"github.com/keyport/keyport/internal/repository"
	"github.com/keyport/keyport/internal/service"
	"github.com/keyport/keyport/internal/stamp"
)

func newGenKeyCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Generate a P-256 API key pair",
		Long: `Generate a P-256 API key pair for the custody API.

The public key is hex encoded in compressed form, the private key as the
raw 32-byte scalar.

Output formats:
  env  - CUSTODY_API_PUBLIC_KEY/CUSTODY_API_PRIVATE_KEY lines (default)
  json - {"publicKey": ..., "privateKey": ...}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := stamp.GenerateAPIKey()
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return printJSON(cmd.OutOrStdout(), pair)
			case "env":
				fmt.Fprintf(cmd.OutOrStdout(), "CUSTODY_API_PUBLIC_KEY=%s\nCUSTODY_API_PRIVATE_KEY=%s\n", pair.PublicKey, pair.PrivateKey)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want env or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "env", "output format: env or json")
	return cmd
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	var organizationID string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Check the API key against the custody API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCustodyEnv()
			if err != nil {
				return err
			}
			client, err := newCustodyClient(cfg, opts.logger(cmd))
			if err != nil {
				return err
			}
			if organizationID == "" {
				organizationID = cfg.OrganizationID
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			who, err := client.GetWhoami(ctx, organizationID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), who)
		},
	}
	cmd.Flags().StringVar(&organizationID, "org", "", "organization ID (defaults to CUSTODY_ORGANIZATION_ID)")
	return cmd
}

func newStampWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stamp-whoami",
		Short: "Print a stamped whoami request without sending it",
		Long: `Print a whoami request for the parent organization stamped with the
API key. The output can be replayed with curl to debug stamping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCustodyEnv()
			if err != nil {
				return err
			}
			client, err := newCustodyClient(cfg, nil)
			if err != nil {
				return err
			}
			req, err := client.StampGetWhoami(cfg.OrganizationID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), req)
		},
	}
}

func newCreateSubOrgCmd(opts *rootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create-suborg",
		Short: "Create a sub-organization with one Ethereum wallet",
		Long: `Create a sub-organization under the parent organization. The root user
gets CUSTODY_DEFAULT_USER_PUBLIC_KEY as an API key instead of a passkey,
so the organization can be inspected with the operator's key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			cfg, err := loadCustodyEnv()
			if err != nil {
				return err
			}
			if cfg.DefaultPublicKey == "" {
				return fmt.Errorf("CUSTODY_DEFAULT_USER_PUBLIC_KEY is required")
			}
			logger := opts.logger(cmd)
			client, err := newCustodyClient(cfg, logger)
			if err != nil {
				return err
			}

			svc := service.NewAuthService(client, nil, nil, service.AuthConfig{
				OrganizationID:       cfg.OrganizationID,
				DefaultUserPublicKey: cfg.DefaultPublicKey,
			}, logger, nil)

			ctx, cancel := opts.context(cmd)
			defer cancel()
			result, err := client.CreateSubOrganization(ctx, cfg.OrganizationID, svc.SubOrganizationParams(email, nil))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "root user email")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dbEnv struct {
				DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
			}
			if err := env.Parse(&dbEnv); err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			repo, err := repository.New(ctx, dbEnv.DatabaseURL)
			if err != nil {
				return err
			}
			defer repo.Close()

			run, verb := repo.Migrate, "applied"
			if down {
				run, verb = repo.Rollback, "rolled back"
			}
			names, err := run(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "drop every table instead of creating them")
	return cmd
}
