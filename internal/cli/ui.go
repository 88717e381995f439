package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/vaultpass/consumer-secrets/internal/client"
)

var (
	successText = color.New(color.FgGreen)
	errorText   = color.New(color.FgRed)
	mutedText   = color.New(color.FgHiBlack)
	valueText   = color.New(color.FgCyan)
)

// fieldValue renders a decrypted value, or a marker when it failed to decrypt.
func fieldValue(value string, err error) string {
	if err != nil {
		return errorText.Sprint("✗ decryption failed")
	}
	return valueText.Sprint(value)
}

func printSecretTable(w io.Writer, secrets []client.DecryptedSecret) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tUSERNAME\tPASSWORD\tUPDATED")
	for _, s := range secrets {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			s.ID, s.Version,
			fieldValue(s.Username, s.UsernameErr),
			fieldValue(s.Password, s.PasswordErr),
			s.UpdatedAt.Format(time.RFC3339),
		)
	}
	tw.Flush()

	for _, s := range secrets {
		if err := s.Err(); err != nil {
			fmt.Fprintln(w, errorText.Sprint("✗ ")+err.Error())
		}
	}
}

func printSecret(w io.Writer, s *client.DecryptedSecret) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", s.ID)
	fmt.Fprintf(tw, "org\t%s\n", s.OrgID)
	fmt.Fprintf(tw, "version\t%d\n", s.Version)
	fmt.Fprintf(tw, "algorithm\t%s\n", s.Algorithm)
	fmt.Fprintf(tw, "username\t%s\n", fieldValue(s.Username, s.UsernameErr))
	fmt.Fprintf(tw, "password\t%s\n", fieldValue(s.Password, s.PasswordErr))
	fmt.Fprintf(tw, "created\t%s\n", mutedText.Sprint(s.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintf(tw, "updated\t%s\n", mutedText.Sprint(s.UpdatedAt.Format(time.RFC3339)))
	tw.Flush()

	if err := s.Err(); err != nil {
		fmt.Fprintln(w, errorText.Sprint("✗ ")+err.Error())
	}
}
