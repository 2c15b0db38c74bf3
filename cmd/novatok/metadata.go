package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"novatok-explorer/internal/metadata"
)

var (
	encodeName        string
	encodeDescription string
	encodeImage       string
	encodeAttrs       []string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a data:application/json;base64 token URI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs, err := parseAttributes(encodeAttrs)
		if err != nil {
			return err
		}
		uri, err := metadata.Encode(metadata.Fields{
			Name:        encodeName,
			Description: encodeDescription,
			Image:       encodeImage,
			Attributes:  attrs,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), uri)
		return nil
	},
}

func init() {
	f := encodeCmd.Flags()
	f.StringVar(&encodeName, "name", "", "token name")
	f.StringVar(&encodeDescription, "description", "", "token description")
	f.StringVar(&encodeImage, "image", "", "image URL")
	f.StringArrayVar(&encodeAttrs, "attr", nil, "attribute as trait=value (repeatable)")
}

var decodeFetch bool

var decodeCmd = &cobra.Command{
	Use:   "decode <token-uri>",
	Short: "Decode a token URI into metadata",
	Long: `Decode an embedded data: token URI. With --fetch, http(s) and ipfs://
URIs are fetched (ipfs through IPFS_GATEWAY).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri := args[0]

		var m any
		if decodeFetch {
			r, closeCache, err := newResolver(cmd.Context(), metadata.NewCodec())
			if err != nil {
				return err
			}
			defer closeCache()
			if md := r.Resolve(cmd.Context(), uri); md != nil {
				m = md
			}
		} else {
			parsed, err := metadata.NewCodec().Parse(uri)
			if err != nil {
				return fmt.Errorf("decode %s token uri: %w", metadata.Classify(uri), err)
			}
			m = parsed
		}

		if m == nil {
			return fmt.Errorf("no metadata for %s token uri", metadata.Classify(uri))
		}
		return printJSON(cmd.OutOrStdout(), m)
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeFetch, "fetch", false, "fetch external URIs")
}
