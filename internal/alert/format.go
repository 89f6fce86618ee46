// internal/alert/format.go
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/signalnine/twiliot/internal/protocol"
)

const alertFileLayout = "2006_01_02-15:04:05"

// AlertFileName is the overflow dump name for a run at t
func AlertFileName(t time.Time) string {
	return "alert_" + t.Format(alertFileLayout) + ".json"
}

// HealthyMessage is sent when every asset reported within maxDowntime
func HealthyMessage(maxDowntime string) string {
	return fmt.Sprintf("All assets have been seen online in the last %s.", maxDowntime)
}

// OverflowMessage points at the file holding the full offline list
func OverflowMessage(maxOffline int, maxDowntime, file string) string {
	return fmt.Sprintf("ALERT: More than %d assets have been offline for at least %s.  Details were saved to %s.",
		maxOffline, maxDowntime, file)
}

// DetailMessage lists every offline asset, one per line
func DetailMessage(maxDowntime string, offline []protocol.OfflineAsset, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALERT!  The following assets have not been seen online in the last %s:\n", maxDowntime)

	for _, o := range offline {
		fmt.Fprintf(&b, "\n- %s (category %s): last seen %s (%s) by %s, down %s",
			o.ID,
			orDash(o.CategoryID),
			o.LastUpdatedAt.UTC().Format(time.RFC3339),
			humanize.RelTime(o.LastUpdatedAt, now, "ago", "from now"),
			orDash(o.LastUpdatedBy),
			o.Downtime,
		)
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
