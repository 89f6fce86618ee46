// cmd/twiliot/history.go
package main

import (
	"errors"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/twiliot/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent alert runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.Alert.HistoryDB == "" {
			return errors.New("no history_db set in the [alert] section")
		}
		db, err := history.NewDB(e.cfg.Alert.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Recent(historyLimit)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), runs, func(tw *tabwriter.Writer) {
			row(tw, "TIME", "ACTION", "CHECKED", "OFFLINE", "RECIPIENT", "MESSAGE", "FILE")
			for _, r := range runs {
				row(tw, r.Timestamp.Local().Format(time.DateTime), r.Action, r.AssetsChecked, r.OfflineCount,
					orDash(r.Recipient), orDash(r.MessageSID), orDash(r.AlertFile))
			}
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
