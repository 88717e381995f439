package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultpass/consumer-secrets/internal/crypto"
	"github.com/vaultpass/consumer-secrets/internal/model"
)

func newTokenCmd() *cobra.Command {
	var (
		actor      model.Actor
		kind       string
		authMethod string
		cfg        crypto.TokenConfig
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		Long: `Signs a bearer token for local development and testing. The secret, issuer
and audience must match the server's JWT_* settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if actor.ID == "" || actor.OrgID == "" {
				return errors.New("--actor-id and --org are required")
			}
			actor.Kind = model.ActorKind(kind)
			actor.AuthMethod = model.AuthMethod(authMethod)

			token, err := crypto.GenerateToken(actor, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&actor.ID, "actor-id", "", "actor (user) ID")
	f.StringVar(&actor.OrgID, "org", "", "organization ID")
	f.StringVar(&kind, "actor", string(model.ActorUser), "actor kind: user or identity")
	f.StringVar(&authMethod, "auth-method", string(model.AuthMethodEmail), "auth method claim")
	f.StringVar(&cfg.Secret, "secret", os.Getenv("JWT_SECRET"), "signing secret")
	f.StringVar(&cfg.Issuer, "issuer", envOr("JWT_ISSUER", "vaultpass"), "issuer claim")
	f.StringVar(&cfg.Audience, "audience", envOr("JWT_AUDIENCE", "vaultpass-api"), "audience claim")
	f.DurationVar(&cfg.Expiry, "expiry", 24*time.Hour, "token lifetime")
	return cmd
}
