package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultpass/consumer-secrets/internal/client"
	"github.com/vaultpass/consumer-secrets/internal/crypto"
)

type generateFlags struct {
	enabled   bool
	length    int
	noSymbols bool
}

func (g *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&g.enabled, "generate", false, "generate a random password")
	cmd.Flags().IntVar(&g.length, "length", crypto.DefaultPasswordLength, "generated password length")
	cmd.Flags().BoolVar(&g.noSymbols, "no-symbols", false, "leave symbols out of the generated password")
}

func (g *generateFlags) password() (string, error) {
	classes := crypto.AllClasses
	if g.noSymbols {
		classes &^= crypto.Symbols
	}
	return crypto.GeneratePassword(g.length, classes)
}

func newSecretsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage consumer secrets",
	}
	cmd.AddCommand(
		newSecretsListCmd(opts),
		newSecretsGetCmd(opts),
		newSecretsCreateCmd(opts),
		newSecretsUpdateCmd(opts),
		newSecretsDeleteCmd(opts),
	)
	return cmd
}

func newSecretsListCmd(opts *options) *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your secrets in an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.secrets()
			if err != nil {
				return err
			}
			list, err := s.List(cmd.Context(), orgID)
			if err != nil {
				return describe(err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedText.Sprint("no secrets"))
				return nil
			}
			printSecretTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization ID")
	cmd.MarkFlagRequired("org")
	return cmd
}

func newSecretsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.secrets()
			if err != nil {
				return err
			}
			secret, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			printSecret(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func newSecretsCreateCmd(opts *options) *cobra.Command {
	var (
		orgID string
		creds client.Credentials
		gen   generateFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypt and store a username/password pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gen.enabled {
				if creds.Password != "" {
					return errors.New("--password and --generate are mutually exclusive")
				}
				p, err := gen.password()
				if err != nil {
					return err
				}
				creds.Password = p
			}
			if creds.Username == "" || creds.Password == "" {
				return errors.New("--username and --password (or --generate) are required")
			}

			s, err := opts.secrets()
			if err != nil {
				return err
			}
			secret, err := s.Create(cmd.Context(), orgID, creds)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created %s\n", successText.Sprint("✓"), secret.ID)
			printSecret(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization ID")
	cmd.Flags().StringVar(&creds.Username, "username", "", "username to store")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password to store")
	gen.register(cmd)
	cmd.MarkFlagRequired("org")
	return cmd
}

func newSecretsUpdateCmd(opts *options) *cobra.Command {
	var (
		changes client.Credentials
		gen     generateFlags
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the username, the password, or both",
		Long: `Encrypts and sends only the fields given. Fields left out keep their
current value on the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if gen.enabled {
				if changes.Password != "" {
					return errors.New("--password and --generate are mutually exclusive")
				}
				p, err := gen.password()
				if err != nil {
					return err
				}
				changes.Password = p
			}

			s, err := opts.secrets()
			if err != nil {
				return err
			}
			secret, err := s.Update(cmd.Context(), args[0], changes)
			if err != nil {
				if errors.Is(err, client.ErrNoChanges) {
					return errors.New("nothing to update: pass --username, --password or --generate")
				}
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated %s to version %d\n", successText.Sprint("✓"), secret.ID, secret.Version)
			printSecret(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().StringVar(&changes.Username, "username", "", "new username")
	cmd.Flags().StringVar(&changes.Password, "password", "", "new password")
	gen.register(cmd)
	return cmd
}

func newSecretsDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.secrets()
			if err != nil {
				return err
			}
			secret, err := s.Delete(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s (version %d)\n", successText.Sprint("✓"), secret.ID, secret.Version)
			return nil
		},
	}
}

// describe turns API status errors into messages for the terminal.
func describe(err error) error {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return errors.New("secret not found")
	case errors.Is(err, client.ErrUnauthorized):
		return fmt.Errorf("not authorized: check --token and organization access (%w)", err)
	}
	return err
}
