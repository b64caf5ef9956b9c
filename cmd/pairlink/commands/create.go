package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairlink/internal/app"
	"pairlink/internal/crypto"
)

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a channel as originator and wait for a peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := chatContext(cmd)
			defer stop()

			ui := newPrinter(cmd.OutOrStdout())
			a, err := wire.NewApp(app.AppOptions{Observer: ui, OnExhausted: ui.exhausted})
			if err != nil {
				return err
			}
			info, err := a.Session.CreateChannel(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel:     %s\nPublic key:  %s\nFingerprint: %s\n",
				info.ChannelID, info.PubKey.Hex(), crypto.Fingerprint(info.PubKey.Slice()))
			fmt.Fprintf(cmd.OutOrStdout(), "Share with the peer: pairlink join %s --peer-key %s\n",
				info.ChannelID, info.PubKey.Hex())
			return chat(ctx, a, ui, cmd.InOrStdin())
		},
	}
}
