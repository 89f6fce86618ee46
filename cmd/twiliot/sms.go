// cmd/twiliot/sms.go
package main

import (
	"errors"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalnine/twiliot/internal/notify"
)

var (
	smsTo      string
	smsMessage string
	smsOutput  string
)

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Send a single SMS with the configured Twilio account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := notify.New(e.cfg.Messaging, e.log)
		if err != nil {
			return err
		}
		res, err := n.SMS(cmd.Context(), smsMessage, stringFlag(cmd, "to", smsTo, e.cfg.Alert.To), smsOutput)
		if err != nil {
			return err
		}
		if res == nil {
			return errors.New("message was not sent, see log")
		}

		return render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
			row(tw, "SID", "STATUS", "TO", "FROM")
			row(tw, res.SID, res.Status, res.To, res.From)
		})
	},
}

func init() {
	smsCmd.Flags().StringVar(&smsTo, "to", "", "phone number to text (default from config)")
	smsCmd.Flags().StringVarP(&smsMessage, "message", "m", "", "message body")
	smsCmd.Flags().StringVar(&smsOutput, "output-file", "", "save the provider's message record as JSON")

	rootCmd.AddCommand(smsCmd)
}
