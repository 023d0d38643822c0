package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/telehealth-gateway/internal/config"
	"github.com/example/telehealth-gateway/internal/identity"
)

func newMigrateCommand(app *cli) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.load(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if !statusOnly {
				if err := store.Migrate(ctx, logger); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
			}

			status, err := store.MigrationStatus(ctx, logger)
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "current version: %s\n", status.CurrentVersion)
			fmt.Fprintf(out, "applied: %d\n", len(status.AppliedMigrations))
			fmt.Fprintf(out, "pending: %d\n", status.PendingCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report migration status without applying")
	return cmd
}

func newSealSecretCommand() *cobra.Command {
	var passphrase string

	cmd := &cobra.Command{
		Use:   "seal-secret [plaintext]",
		Short: "Seal a secret for jitsi.jwt_app_secret_sealed",
		Long:  `seal-secret encrypts a secret with the passphrase later configured as secret_key. Without an argument the secret is read from stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				passphrase = os.Getenv("TELEHEALTH_SECRET_KEY")
			}

			var plaintext string
			if len(args) == 1 {
				plaintext = args[0]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read secret: %w", err)
				}
				plaintext = strings.TrimRight(string(raw), "\r\n")
			}

			sealed, err := config.SealSecret(plaintext, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "sealing passphrase (default $TELEHEALTH_SECRET_KEY)")
	return cmd
}

type mintedIdentity struct {
	Token     string    `json:"token"`
	CSRFToken string    `json:"csrf_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newMintIdentityCommand(app *cli) *cobra.Command {
	var (
		kind    string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint-identity",
		Short: "Issue an identity token for a staff user or portal patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.load(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var k identity.Kind
			switch strings.ToLower(strings.TrimSpace(kind)) {
			case string(identity.KindStaff):
				k = identity.KindStaff
			case string(identity.KindPortal):
				k = identity.KindPortal
			default:
				return fmt.Errorf("unknown identity kind %q (want staff or portal)", kind)
			}
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			issuedAt := time.Now()
			authority, err := identity.NewAuthority(cfg.IdentitySecret, func() time.Time { return issuedAt })
			if err != nil {
				return err
			}
			sub := identity.Subject{Kind: k, ID: strings.TrimSpace(subject)}
			raw, err := authority.Mint(sub, ttl)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(mintedIdentity{
				Token:     raw,
				CSRFToken: authority.CSRFToken(sub),
				ExpiresAt: issuedAt.Add(ttl).UTC().Truncate(time.Second),
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(identity.KindStaff), "identity kind: staff or portal")
	cmd.Flags().StringVar(&subject, "subject", "", "staff username or portal patient id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
