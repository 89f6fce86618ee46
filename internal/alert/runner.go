// internal/alert/runner.go
package alert

import (
	"context"
	"time"
)

// Run alerts once, then again every interval until ctx is done.
// Failed runs are logged and the loop continues. interval <= 0 runs once
// and returns that run's error.
func (a *Alerter) Run(ctx context.Context, interval time.Duration, opts Options) error {
	if interval <= 0 {
		_, err := a.AlertAssets(ctx, opts)
		return err
	}

	a.log.Info().
		Dur("interval", interval).
		Str("max_downtime", opts.MaxDowntime).
		Msg("alert loop starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runOnce(ctx, opts)

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("alert loop shutting down")
			return nil
		case <-ticker.C:
			a.runOnce(ctx, opts)
		}
	}
}

func (a *Alerter) runOnce(ctx context.Context, opts Options) {
	report, err := a.AlertAssets(ctx, opts)
	if err != nil {
		a.log.Error().Err(err).Msg("alert run failed")
		return
	}
	a.log.Info().
		Str("run", report.RunID).
		Str("action", report.Action).
		Int("offline", len(report.Offline)).
		Msg("alert run complete")
}
