package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"conclave/internal/domain"
)

const relayTimeout = 15 * time.Second

var errNoRelay = errors.New("no relay configured. use --relay")

// send <address> <message>: run a one-to-one message through the pipeline
// and hand every resulting fragment to the relay.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <address> <message>",
		Short: "Send a message to a peer through the relay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Relay == nil {
				return errNoRelay
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), relayTimeout)
			defer cancel()

			to := domain.Contact{Address: domain.Address(args[0]), Provider: appCtx.Relay.Provider()}
			if err := appCtx.Pipeline.SendDirect(ctx, appCtx.Relay, to, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

// recv: fetch queued messages and print the ones the pipeline lets through.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch your queued messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Relay == nil {
				return errNoRelay
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), relayTimeout)
			defer cancel()

			evts, err := appCtx.Relay.Receive(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range evts {
				evt, ok := appCtx.Pipeline.DirectReceived(e)
				if !ok {
					continue
				}
				fmt.Fprintf(out, "[%s] %s\n", evt.Contact.Address, evt.Message.Body)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to fetch (0 for all)")
	return cmd
}
