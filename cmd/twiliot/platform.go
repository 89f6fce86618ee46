// cmd/twiliot/platform.go
package main

import (
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/twiliot/internal/platform"
	"github.com/signalnine/twiliot/internal/protocol"
)

var listMax int

var pixelsCmd = &cobra.Command{
	Use:   "pixels",
	Short: "List pixels registered to the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		client, err := platform.NewClient(e.cfg.Platform, e.log)
		if err != nil {
			return err
		}
		pixels, err := client.GetPixels(cmd.Context(), listMax)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), pixels, func(tw *tabwriter.Writer) {
			row(tw, "ID")
			for _, p := range pixels {
				row(tw, orDash(p.ID()))
			}
		})
	},
}

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List assets and when each was last seen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		client, err := platform.NewClient(e.cfg.Platform, e.log)
		if err != nil {
			return err
		}
		assets, err := client.GetAssets(cmd.Context(), listMax)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), assets, func(tw *tabwriter.Writer) {
			assetHeader(tw)
			for _, a := range assets {
				assetRow(tw, a)
			}
		})
	},
}

var assetCmd = &cobra.Command{
	Use:   "asset ID",
	Short: "Show one asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		client, err := platform.NewClient(e.cfg.Platform, e.log)
		if err != nil {
			return err
		}
		asset, err := client.GetAsset(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), asset, func(tw *tabwriter.Writer) {
			assetHeader(tw)
			assetRow(tw, *asset)
		})
	},
}

func assetHeader(tw *tabwriter.Writer) {
	row(tw, "ID", "NAME", "CATEGORY", "LAST SEEN", "SEEN BY")
}

func assetRow(tw *tabwriter.Writer, a protocol.Asset) {
	seen := "-"
	if !a.LastUpdatedAt.Missing() {
		seen = a.LastUpdatedAt.UTC().Format(time.RFC3339)
	}
	row(tw, a.ID, orDash(a.Name), orDash(a.CategoryID), seen, orDash(a.LastUpdatedBy))
}

func init() {
	pixelsCmd.Flags().IntVar(&listMax, "max", 0, "stop after this many records (0 = all)")
	assetsCmd.Flags().IntVar(&listMax, "max", 0, "stop after this many records (0 = all)")

	rootCmd.AddCommand(pixelsCmd, assetsCmd, assetCmd)
}
