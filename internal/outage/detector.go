// internal/outage/detector.go

// Package outage finds assets that have not reported within a threshold.
package outage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalnine/twiliot/internal/logging"
	"github.com/signalnine/twiliot/internal/protocol"
)

// AssetLister is the part of the platform client the detector needs
type AssetLister interface {
	GetAssets(ctx context.Context, max int) ([]protocol.Asset, error)
}

// Result is the outcome of one check
type Result struct {
	Checked   int
	Skipped   int
	Threshold time.Time
	CheckedAt time.Time
	Offline   []protocol.OfflineAsset
}

// Detector compares asset last-seen times against a threshold
type Detector struct {
	assets    AssetLister
	maxAssets int
	now       func() time.Time
	log       zerolog.Logger
}

// NewDetector builds a detector over assets; maxAssets <= 0 fetches everything
func NewDetector(assets AssetLister, maxAssets int, log zerolog.Logger) *Detector {
	return &Detector{
		assets:    assets,
		maxAssets: maxAssets,
		now:       time.Now,
		log:       logging.Component(log, "outage"),
	}
}

// SetClock replaces the time source
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// CheckAssets returns the offline assets in platform order
func (d *Detector) CheckAssets(ctx context.Context, maxDowntime string) ([]protocol.OfflineAsset, error) {
	res, err := d.Check(ctx, maxDowntime)
	if err != nil {
		return nil, err
	}
	return res.Offline, nil
}

// Check fetches assets and evaluates them against maxDowntime
func (d *Detector) Check(ctx context.Context, maxDowntime string) (*Result, error) {
	if strings.TrimSpace(maxDowntime) == "" {
		return nil, protocol.Missing("max downtime")
	}

	now := d.now()
	threshold, err := ParseThreshold(maxDowntime, now)
	if err != nil {
		return nil, err
	}

	assets, err := d.assets.GetAssets(ctx, d.maxAssets)
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}

	res := &Result{
		Checked:   len(assets),
		Threshold: threshold,
		CheckedAt: now,
		Offline:   []protocol.OfflineAsset{},
	}
	if len(assets) == 0 {
		d.log.Info().Msg("platform returned no assets")
		return res, nil
	}

	res.Offline, res.Skipped = d.Evaluate(assets, threshold, now)

	d.log.Info().
		Int("assets", res.Checked).
		Int("offline", len(res.Offline)).
		Int("skipped", res.Skipped).
		Time("threshold", threshold).
		Msg("asset check complete")

	return res, nil
}

// Evaluate keeps assets last updated strictly before threshold.
// Assets without a timestamp are logged and counted as skipped.
func (d *Detector) Evaluate(assets []protocol.Asset, threshold, now time.Time) ([]protocol.OfflineAsset, int) {
	offline := []protocol.OfflineAsset{}
	skipped := 0

	for _, a := range assets {
		if a.LastUpdatedAt.Missing() {
			d.log.Warn().Str("asset", a.ID).Msg(`malformed asset: expected field "lastUpdatedAt" missing`)
			skipped++
			continue
		}

		last := a.LastUpdatedAt.Time
		if !last.Before(threshold) {
			continue
		}

		downtime := now.Sub(last)
		if downtime < 0 {
			downtime = 0
		}
		offline = append(offline, protocol.OfflineAsset{
			ID:            a.ID,
			CategoryID:    a.CategoryID,
			LastUpdatedAt: last,
			LastUpdatedBy: a.LastUpdatedBy,
			Downtime:      protocol.Duration(downtime),
		})
	}

	return offline, skipped
}
