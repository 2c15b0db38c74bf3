package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"novatok-explorer/internal/domain"
)

var watchFromBlock uint64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream Transfer events of the configured contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.ContractConfigured() {
			return errors.New("watch needs NFT_CONTRACT_ADDRESS")
		}
		if cfg.WSURL == "" {
			return errors.New("watch needs WS_URL")
		}

		ctx, cancel := signalContext()
		defer cancel()

		svc, client, cleanup, err := newService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		out := cmd.OutOrStdout()
		from := watchFromBlock
		return runWatcher(ctx, svc, client, &from, func(e domain.TransferEvent) {
			fmt.Fprintf(out, "%-8s block=%d token=%s from=%s to=%s tx=%s\n",
				e.Kind(), e.BlockNumber, e.TokenID, e.From, e.To, e.TxHash)
		})
	},
}

func init() {
	watchCmd.Flags().Uint64Var(&watchFromBlock, "from-block", 0, "backfill from this block before streaming (0 disables)")
}
