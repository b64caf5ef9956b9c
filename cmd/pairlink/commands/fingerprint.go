package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <public-key-hex>",
		Short: "Print the fingerprint of a channel public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := domain.ParseX25519Public(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", crypto.Fingerprint(pub.Slice()))
			return nil
		},
	}
}
