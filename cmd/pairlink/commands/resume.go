package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pairlink/internal/app"
	"pairlink/internal/domain"
)

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [channel-id]",
		Short: "Rejoin a saved channel with its stored key pair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return errors.New("passphrase required (-p)")
			}
			id, err := pickChannel(args)
			if err != nil {
				return err
			}
			rec, ok, err := wire.Store.LoadChannel(passphrase, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no saved channel %s", id)
			}
			if rec.RelayURL != "" && relayURL == "" && rec.RelayURL != cfg.Relay.URL {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: channel was created on %s\n", rec.RelayURL)
			}

			ctx, stop := chatContext(cmd)
			defer stop()
			ui := newPrinter(cmd.OutOrStdout())
			a, err := wire.NewApp(app.AppOptions{Observer: ui, Record: &rec, OnExhausted: ui.exhausted})
			if err != nil {
				return err
			}
			if err := a.Restore(ctx, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejoining %s as %s\n", rec.ChannelID, rec.Role)
			return chat(ctx, a, ui, cmd.InOrStdin())
		},
	}
}

func pickChannel(args []string) (domain.ChannelID, error) {
	if len(args) == 1 {
		return domain.ChannelID(args[0]), nil
	}
	ids, err := wire.Store.ListChannels()
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", errors.New("no saved channels")
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%d saved channels; name one (see: pairlink channels)", len(ids))
	}
}
