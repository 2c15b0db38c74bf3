package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/erc721"
	"novatok-explorer/internal/gallery"
)

var ownedCmd = &cobra.Command{
	Use:   "owned <address>",
	Short: "List the tokens an address holds, with decoded metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, _, cleanup, err := newService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		items, err := svc.Gallery(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var (
	mintTo          string
	mintName        string
	mintDescription string
	mintImage       string
	mintAttrs       []string
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a token with embedded base64 metadata and wait for the receipt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs, err := parseAttributes(mintAttrs)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := newService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.Mint(ctx, gallery.MintRequest{
			To:          mintTo,
			Name:        mintName,
			Description: mintDescription,
			Image:       mintImage,
			Attributes:  attrs,
		})
		if res != nil {
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	f := mintCmd.Flags()
	f.StringVar(&mintTo, "to", "", "recipient (defaults to the sending account)")
	f.StringVar(&mintName, "name", "", "token name")
	f.StringVar(&mintDescription, "description", "", "token description")
	f.StringVar(&mintImage, "image", "", "image URL (required)")
	f.StringArrayVar(&mintAttrs, "attr", nil, "attribute as trait=value (repeatable)")
	_ = mintCmd.MarkFlagRequired("image")
}

// parseAttributes turns trait=value pairs into attributes.
func parseAttributes(pairs []string) ([]domain.Attribute, error) {
	var out []domain.Attribute
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid attribute %q: want trait=value", p)
		}
		out = append(out, domain.Attribute{TraitType: strings.TrimSpace(k), Value: v})
	}
	return out, nil
}

var mintsLimit int

var mintsCmd = &cobra.Command{
	Use:   "mints <recipient>",
	Short: "List ledger entries for mints sent to an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, _, cleanup, err := newService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		mints, err := svc.Mints(ctx, args[0], mintsLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), mints)
	},
}

func init() {
	mintsCmd.Flags().IntVar(&mintsLimit, "limit", 50, "maximum entries")
}

type receiptOutput struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Status      string `json:"status"`
	TokenID     string `json:"tokenId,omitempty"`
	ExplorerURL string `json:"explorerUrl"`
}

var receiptCmd = &cobra.Command{
	Use:   "receipt <txhash>",
	Short: "Fetch a mint receipt and extract the minted token id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := gallery.ParseTxHash(args[0])
		if err != nil {
			return err
		}
		receipt, err := newRPCClient().TransactionReceipt(context.Background(), hash)
		if err != nil {
			return err
		}
		if receipt == nil {
			return fmt.Errorf("transaction %s is pending or unknown", hash.Hex())
		}

		out := receiptOutput{
			TxHash:      hash.Hex(),
			BlockNumber: receipt.BlockNumber,
			Status:      string(domain.MintStatusReverted),
			ExplorerURL: cfg.TxURL(hash.Hex()),
		}
		if receipt.Succeeded() {
			out.Status = string(domain.MintStatusConfirmed)
			out.TokenID, _ = erc721.ParseTokenID(receipt)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle pending ledger entries whose receipts are available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, _, cleanup, err := newService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "settled %d pending mint(s)\n", n)
		return nil
	},
}
