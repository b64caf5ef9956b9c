package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairlink/internal/domain"
)

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List saved channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := wire.Store.ListChannels()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <channel-id>",
		Short: "Delete a saved channel and its key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.Store.DeleteChannel(domain.ChannelID(args[0]))
		},
	}
}
