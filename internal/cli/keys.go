package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultpass/consumer-secrets/internal/client"
)

func newKeysCmd(opts *options) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage the local key pair",
	}

	var force bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new key pair and write it to the keystore",
		Long: `Generates a NaCl box key pair and writes it to the keystore file.

Secrets encrypted with an existing key pair cannot be read after it is replaced,
so an existing keystore is only overwritten with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.keystore); err == nil && !force {
				return fmt.Errorf("keystore %s already exists (use --force to replace it)", opts.keystore)
			}

			kc, err := client.GenerateKeyContext()
			if err != nil {
				return err
			}
			if err := kc.Save(opts.keystore); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s wrote key pair to %s\n", successText.Sprint("✓"), opts.keystore)
			fmt.Fprintf(out, "public key: %s\n", valueText.Sprint(kc.PublicKey()))
			return nil
		},
	}
	generate.Flags().BoolVar(&force, "force", false, "replace an existing keystore")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the public key from the keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := client.LoadKeyContext(opts.keystore)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), kc.PublicKey())
			return nil
		},
	}

	keys.AddCommand(generate, show)
	return keys
}
