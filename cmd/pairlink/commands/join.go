package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairlink/internal/app"
	"pairlink/internal/domain"
)

func joinCmd() *cobra.Command {
	var peerKey string
	cmd := &cobra.Command{
		Use:   "join <channel-id>",
		Short: "Join a channel created by a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pinned domain.X25519Public
			if peerKey != "" {
				var err error
				if pinned, err = domain.ParseX25519Public(peerKey); err != nil {
					return fmt.Errorf("--peer-key: %w", err)
				}
			}
			ctx, stop := chatContext(cmd)
			defer stop()

			ui := newPrinter(cmd.OutOrStdout())
			a, err := wire.NewApp(app.AppOptions{Observer: ui, PeerKey: pinned, OnExhausted: ui.exhausted})
			if err != nil {
				return err
			}
			if err := a.Session.ConnectToChannel(ctx, domain.ChannelID(args[0])); err != nil {
				return err
			}
			return chat(ctx, a, ui, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&peerKey, "peer-key", "", "originator public key (hex) to pin")
	return cmd
}
