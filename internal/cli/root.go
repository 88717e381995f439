// Package cli implements the vaultctl command tree. Secrets are encrypted and
// decrypted locally; only ciphertext is sent to the API.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vaultpass/consumer-secrets/internal/client"
)

const defaultAPIURL = "http://localhost:8080"

type options struct {
	apiURL   string
	token    string
	keystore string
}

// NewRootCmd builds the vaultctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "vaultctl",
		Short: "vaultctl - end-to-end encrypted consumer secrets",
		Long: `vaultctl stores username/password pairs in a VaultPass organization.

Values are encrypted on this machine with the key pair in your keystore before
they are sent, and decrypted after they are fetched. The server only ever holds
ciphertext.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", envOr("VAULTCTL_API_URL", defaultAPIURL), "API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("VAULTCTL_TOKEN"), "bearer token")
	root.PersistentFlags().StringVar(&opts.keystore, "keystore", envOr("VAULTCTL_KEYSTORE", defaultKeystorePath()), "path to the key pair file")

	root.AddCommand(newKeysCmd(opts))
	root.AddCommand(newTokenCmd())
	root.AddCommand(newSecretsCmd(opts))
	return root
}

// secrets loads the key context once and binds it to an API client.
func (o *options) secrets() (*client.Secrets, error) {
	keys, err := client.LoadKeyContext(o.keystore)
	if err != nil {
		return nil, err
	}
	return client.NewSecrets(client.NewAPIClient(o.apiURL, o.token, nil), keys), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultKeystorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vaultctl-keys.env"
	}
	return filepath.Join(dir, "vaultctl", "keys.env")
}
