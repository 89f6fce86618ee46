// internal/alert/alerter.go

// Package alert turns an outage check into at most one SMS.
package alert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalnine/twiliot/internal/logging"
	"github.com/signalnine/twiliot/internal/metrics"
	"github.com/signalnine/twiliot/internal/outage"
	"github.com/signalnine/twiliot/internal/protocol"
)

// DefaultMaxOffline is the largest outage listed inline in the SMS body
const DefaultMaxOffline = 5

// Sender delivers one SMS; see notify.Notifier
type Sender interface {
	SMS(ctx context.Context, message, to, outputFile string) (*protocol.SMSResult, error)
}

// SenderFactory builds the default sender on first use
type SenderFactory func() (Sender, error)

// Checker runs an outage check; see outage.Detector
type Checker interface {
	Check(ctx context.Context, maxDowntime string) (*outage.Result, error)
}

// RunStore persists a record of each run; see history.DB
type RunStore interface {
	InsertRun(r *protocol.AlertRun) error
}

// Options controls a single alert run
type Options struct {
	MaxDowntime  string
	To           string
	OutputFile   string // optional JSON dump of the SMS result
	Sender       Sender // overrides the factory-built sender
	AlertHealthy bool
	MaxOffline   int
	AlertDir     string // where overflow files go; working dir when empty
}

// Report describes what a run found and did
type Report struct {
	RunID     string                  `json:"run_id"`
	Action    string                  `json:"action"`
	Checked   int                     `json:"assets_checked"`
	Offline   []protocol.OfflineAsset `json:"offline"`
	Message   string                  `json:"message,omitempty"`
	AlertFile string                  `json:"alert_file,omitempty"`
	Result    *protocol.SMSResult     `json:"sms,omitempty"`
}

// Alerter wires the outage check to the notifier
type Alerter struct {
	checker  Checker
	factory  SenderFactory
	sender   Sender
	history  RunStore
	metrics  *metrics.Recorder
	textfile string
	now      func() time.Time
	log      zerolog.Logger
}

// New builds an alerter; factory may be nil when every run passes a Sender
func New(checker Checker, factory SenderFactory, log zerolog.Logger) *Alerter {
	return &Alerter{
		checker: checker,
		factory: factory,
		now:     time.Now,
		log:     logging.Component(log, "alert"),
	}
}

// WithHistory records every run in store
func (a *Alerter) WithHistory(store RunStore) *Alerter {
	a.history = store
	return a
}

// WithMetrics updates m after every run and, if textfile is set, writes it there
func (a *Alerter) WithMetrics(m *metrics.Recorder, textfile string) *Alerter {
	a.metrics = m
	a.textfile = textfile
	return a
}

// WithClock replaces the time source used for file names and history
func (a *Alerter) WithClock(now func() time.Time) *Alerter {
	a.now = now
	return a
}

// AlertAssets checks assets and sends the alert the outcome calls for:
// nothing when everything is online (unless AlertHealthy), an inline listing
// up to MaxOffline assets, and a pointer to a JSON file beyond that.
func (a *Alerter) AlertAssets(ctx context.Context, opts Options) (*Report, error) {
	if opts.MaxOffline <= 0 {
		opts.MaxOffline = DefaultMaxOffline
	}

	sender, err := a.senderFor(opts)
	if err != nil {
		return nil, err
	}

	res, err := a.checker.Check(ctx, opts.MaxDowntime)
	if err != nil {
		return nil, err
	}

	now := a.now()
	report := &Report{
		RunID:   uuid.NewString(),
		Checked: res.Checked,
		Offline: res.Offline,
	}

	switch n := len(res.Offline); {
	case n == 0 && opts.AlertHealthy:
		report.Action = protocol.ActionHealthy
		report.Message = HealthyMessage(opts.MaxDowntime)
	case n == 0:
		report.Action = protocol.ActionSkipped
	case n > opts.MaxOffline:
		report.Action = protocol.ActionOverflow
		report.AlertFile = filepath.Join(opts.AlertDir, AlertFileName(now))
		if err := protocol.WriteJSON(report.AlertFile, res.Offline); err != nil {
			return nil, fmt.Errorf("write alert file: %w", err)
		}
		a.log.Info().Str("file", report.AlertFile).Int("offline", n).Msg("offline list saved")
		report.Message = OverflowMessage(opts.MaxOffline, opts.MaxDowntime, report.AlertFile)
	default:
		report.Action = protocol.ActionDetail
		report.Message = DetailMessage(opts.MaxDowntime, res.Offline, now)
	}

	var sendErr error
	if report.Action == protocol.ActionSkipped {
		a.log.Info().Int("assets", res.Checked).Msg("all assets online, healthy alerts disabled; no SMS sent")
	} else {
		report.Result, sendErr = sender.SMS(ctx, report.Message, opts.To, opts.OutputFile)
	}

	a.record(report, res, opts, now)

	if sendErr != nil {
		return report, fmt.Errorf("send alert: %w", sendErr)
	}
	return report, nil
}

func (a *Alerter) senderFor(opts Options) (Sender, error) {
	if opts.Sender != nil {
		return opts.Sender, nil
	}
	if a.sender != nil {
		return a.sender, nil
	}
	if a.factory == nil {
		return nil, errors.New("no SMS sender configured")
	}

	s, err := a.factory()
	if err != nil {
		return nil, err
	}
	a.sender = s
	return s, nil
}

func (a *Alerter) record(report *Report, res *outage.Result, opts Options, now time.Time) {
	attempted := report.Action != protocol.ActionSkipped

	if a.metrics != nil {
		a.metrics.ObserveCheck(res.Checked, len(res.Offline), res.Skipped, res.CheckedAt)
		a.metrics.ObserveAlert(report.Action, attempted, report.Result != nil)
		if a.textfile != "" {
			if err := a.metrics.WriteTextfile(a.textfile); err != nil {
				a.log.Warn().Err(err).Str("file", a.textfile).Msg("failed to write metrics textfile")
			}
		}
	}

	if a.history == nil {
		return
	}

	run := &protocol.AlertRun{
		RunID:         report.RunID,
		Timestamp:     now,
		MaxDowntime:   opts.MaxDowntime,
		AssetsChecked: res.Checked,
		OfflineCount:  len(res.Offline),
		Action:        report.Action,
		AlertFile:     report.AlertFile,
	}
	if attempted {
		run.Recipient = opts.To
	}
	if report.Result != nil {
		run.MessageSID = report.Result.SID
		run.MessageStatus = report.Result.Status
	}
	if err := a.history.InsertRun(run); err != nil {
		a.log.Warn().Err(err).Str("run", report.RunID).Msg("failed to record alert run")
	}
}
