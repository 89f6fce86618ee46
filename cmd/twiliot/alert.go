// cmd/twiliot/alert.go
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/twiliot/internal/alert"
	"github.com/signalnine/twiliot/internal/history"
	"github.com/signalnine/twiliot/internal/metrics"
	"github.com/signalnine/twiliot/internal/notify"
	"github.com/signalnine/twiliot/internal/outage"
	"github.com/signalnine/twiliot/internal/platform"
	"github.com/signalnine/twiliot/internal/protocol"
)

var (
	maxDowntime  string
	alertTo      string
	alertOutput  string
	alertHealthy bool
	maxOffline   int
	alertDir     string
	alertEvery   time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List assets not seen within --max-downtime, without alerting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		detector, err := newDetector(e)
		if err != nil {
			return err
		}
		res, err := detector.Check(cmd.Context(), stringFlag(cmd, "max-downtime", maxDowntime, e.cfg.Alert.MaxDowntime))
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), res.Offline, func(tw *tabwriter.Writer) {
			offlineTable(tw, res.Offline)
			fmt.Fprintf(tw, "\n%d of %d assets offline since %s (%d without a timestamp)\n",
				len(res.Offline), res.Checked, res.Threshold.Format(time.RFC3339), res.Skipped)
		})
	},
}

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Check assets and send an SMS about the ones offline",
	Long: `Check every asset against --max-downtime and text --to about the result.
Up to --max-offline assets are listed in the message; beyond that the list is
saved to a JSON file in --alert-dir and the message points at it. With --every
the check repeats on that interval until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		detector, err := newDetector(e)
		if err != nil {
			return err
		}

		a := alert.New(detector, func() (alert.Sender, error) {
			return notify.New(e.cfg.Messaging, e.log)
		}, e.log)

		if path := e.cfg.Alert.HistoryDB; path != "" {
			db, err := history.NewDB(path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer db.Close()
			a.WithHistory(db)
		}
		if path := e.cfg.Alert.MetricsTextfile; path != "" {
			a.WithMetrics(metrics.NewRecorder(), path)
		}

		ac := e.cfg.Alert
		opts := alert.Options{
			MaxDowntime:  stringFlag(cmd, "max-downtime", maxDowntime, ac.MaxDowntime),
			To:           stringFlag(cmd, "to", alertTo, ac.To),
			OutputFile:   stringFlag(cmd, "output-file", alertOutput, ac.OutputFile),
			AlertHealthy: ac.AlertHealthy,
			MaxOffline:   ac.MaxOffline,
			AlertDir:     stringFlag(cmd, "alert-dir", alertDir, ac.AlertDir),
		}
		if cmd.Flags().Changed("alert-healthy") {
			opts.AlertHealthy = alertHealthy
		}
		if cmd.Flags().Changed("max-offline") {
			opts.MaxOffline = maxOffline
		}
		interval := ac.Interval
		if cmd.Flags().Changed("every") {
			interval = alertEvery
		}

		if interval > 0 {
			return a.Run(cmd.Context(), interval, opts)
		}

		report, err := a.AlertAssets(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), report, func(tw *tabwriter.Writer) {
			offlineTable(tw, report.Offline)
			fmt.Fprintf(tw, "\naction: %s\n", report.Action)
			if report.AlertFile != "" {
				fmt.Fprintf(tw, "alert file: %s\n", report.AlertFile)
			}
			switch {
			case report.Result != nil:
				fmt.Fprintf(tw, "sms: %s (%s)\n", report.Result.SID, report.Result.Status)
			case report.Action != protocol.ActionSkipped:
				fmt.Fprintln(tw, "sms: not sent, see log")
			}
		})
	},
}

func newDetector(e *env) (*outage.Detector, error) {
	client, err := platform.NewClient(e.cfg.Platform, e.log)
	if err != nil {
		return nil, err
	}
	return outage.NewDetector(client, e.cfg.Alert.MaxAssets, e.log), nil
}

// stringFlag prefers an explicitly set flag over the config file value
func stringFlag(cmd *cobra.Command, name, flag, fallback string) string {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return fallback
}

func offlineTable(tw *tabwriter.Writer, offline []protocol.OfflineAsset) {
	row(tw, "ID", "CATEGORY", "LAST SEEN", "SEEN BY", "DOWNTIME")
	for _, o := range offline {
		row(tw, o.ID, orDash(o.CategoryID), o.LastUpdatedAt.UTC().Format(time.RFC3339), orDash(o.LastUpdatedBy), o.Downtime)
	}
}

func init() {
	checkCmd.Flags().StringVar(&maxDowntime, "max-downtime", "", `how long an asset may go unseen, e.g. "1d", "36h", "2 days ago" or a timestamp (default from config, else 1d)`)

	f := alertCmd.Flags()
	f.StringVar(&maxDowntime, "max-downtime", "", `how long an asset may go unseen (default from config, else 1d)`)
	f.StringVar(&alertTo, "to", "", "phone number to text")
	f.StringVar(&alertOutput, "output-file", "", "save the provider's message record as JSON")
	f.BoolVar(&alertHealthy, "alert-healthy", false, "send a message even when every asset is online")
	f.IntVar(&maxOffline, "max-offline", alert.DefaultMaxOffline, "list at most this many assets in the message")
	f.StringVar(&alertDir, "alert-dir", "", "directory for overflow alert files")
	f.DurationVar(&alertEvery, "every", 0, "repeat the check on this interval until interrupted")

	rootCmd.AddCommand(checkCmd, alertCmd)
}
