// internal/notify/twilio.go

// Package notify sends SMS alerts through the Twilio Messages API.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/signalnine/twiliot/internal/config"
	"github.com/signalnine/twiliot/internal/logging"
	"github.com/signalnine/twiliot/internal/protocol"
)

const (
	// DefaultAPIURL is used when the messaging section sets no url
	DefaultAPIURL = "https://api.twilio.com"

	messagesPath = "/2010-04-01/Accounts/{sid}/Messages.json"
)

// dateLayouts are tried in order when normalizing provider dates
var dateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339Nano}

// ProviderError is the provider's error body plus the HTTP status
type ProviderError struct {
	Status   int    `json:"status"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider returned %d: code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// Notifier sends SMS from one configured number
type Notifier struct {
	http *resty.Client
	from string
	log  zerolog.Logger
}

// twilioMessage mirrors the provider's message resource; subresource_uris is not read
type twilioMessage struct {
	AccountSID          string  `json:"account_sid"`
	APIVersion          string  `json:"api_version"`
	Body                string  `json:"body"`
	DateCreated         *string `json:"date_created"`
	DateSent            *string `json:"date_sent"`
	DateUpdated         *string `json:"date_updated"`
	Direction           string  `json:"direction"`
	ErrorCode           *int    `json:"error_code"`
	ErrorMessage        *string `json:"error_message"`
	From                string  `json:"from"`
	MessagingServiceSID *string `json:"messaging_service_sid"`
	NumMedia            string  `json:"num_media"`
	NumSegments         string  `json:"num_segments"`
	Price               *string `json:"price"`
	PriceUnit           string  `json:"price_unit"`
	SID                 string  `json:"sid"`
	Status              string  `json:"status"`
	To                  string  `json:"to"`
	URI                 string  `json:"uri"`
}

// New validates cfg and builds a notifier; missing credentials are a ConfigError
func New(cfg config.MessagingConfig, log zerolog.Logger) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := cfg.URL
	if base == "" {
		base = DefaultAPIURL
	}

	log = logging.Component(log, "notify")

	r := resty.New().
		SetBaseURL(strings.TrimSuffix(base, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetBasicAuth(cfg.SID, cfg.Auth).
		SetPathParam("sid", cfg.SID).
		SetLogger(logging.RestyLogger{L: log}).
		SetDebug(logging.DebugEnabled(log)).
		OnRequestLog(logging.RedactAuth)

	r.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Info().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("elapsed", resp.Time()).
			Msg("messaging request")
		return nil
	})

	return &Notifier{http: r, from: cfg.Number, log: log}, nil
}

// NewFromFile loads the messaging section of the config at path
func NewFromFile(path string, log zerolog.Logger) (*Notifier, error) {
	cfg, err := config.LoadMessagingConfig(path)
	if err != nil {
		return nil, err
	}
	return New(*cfg, log)
}

// SMS sends message to the destination number.
//
// A missing message or destination, or a failed send, is logged and yields
// (nil, nil): alerting failures never abort the caller. A success response that
// is not a message resource is a ValidationError. When outputFile is set the
// result is also written there as JSON.
func (n *Notifier) SMS(ctx context.Context, message, to, outputFile string) (*protocol.SMSResult, error) {
	if message == "" || to == "" {
		var missing []string
		if message == "" {
			missing = append(missing, "message")
		}
		if to == "" {
			missing = append(missing, "destination phone number")
		}
		n.log.Error().Strs("missing", missing).Msg("must provide message and destination phone number to send SMS")
		return nil, nil
	}

	resp, err := n.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": n.from,
			"Body": message,
		}).
		Post(messagesPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		n.log.Error().Err(err).Str("to", to).Msg("failed to send SMS")
		return nil, nil
	}
	if resp.IsError() {
		perr := decodeProviderError(resp)
		n.log.Error().Err(perr).Str("to", to).Str("more_info", perr.MoreInfo).Msg("failed to send SMS")
		return nil, nil
	}

	result, err := decodeMessage(resp.Body())
	if err != nil {
		return nil, err
	}

	if outputFile != "" {
		if err := protocol.WriteJSON(outputFile, result); err != nil {
			return result, fmt.Errorf("write SMS result: %w", err)
		}
	}

	n.log.Info().Str("sid", result.SID).Str("status", result.Status).Str("to", to).Msg("SMS sent")
	return result, nil
}

func decodeProviderError(resp *resty.Response) *ProviderError {
	perr := &ProviderError{}
	if err := json.Unmarshal(resp.Body(), perr); err != nil || perr.Message == "" {
		perr.Message = strings.TrimSpace(resp.String())
	}
	perr.Status = resp.StatusCode()
	return perr
}

func decodeMessage(body []byte) (*protocol.SMSResult, error) {
	var m twilioMessage
	if err := json.Unmarshal(body, &m); err != nil || m.SID == "" {
		return nil, &protocol.ValidationError{
			Field: "response",
			Msg:   "malformed SMS output, expected a message resource with a sid",
		}
	}

	return &protocol.SMSResult{
		AccountSID:          m.AccountSID,
		APIVersion:          m.APIVersion,
		Body:                m.Body,
		DateCreated:         normalizeDate(m.DateCreated),
		DateSent:            normalizeDate(m.DateSent),
		DateUpdated:         normalizeDate(m.DateUpdated),
		Direction:           m.Direction,
		ErrorCode:           m.ErrorCode,
		ErrorMessage:        m.ErrorMessage,
		From:                m.From,
		MessagingServiceSID: m.MessagingServiceSID,
		NumMedia:            m.NumMedia,
		NumSegments:         m.NumSegments,
		Price:               m.Price,
		PriceUnit:           m.PriceUnit,
		SID:                 m.SID,
		Status:              m.Status,
		To:                  m.To,
		URI:                 m.URI,
	}, nil
}

// normalizeDate rewrites a provider date as RFC 3339; absent or unparseable gives nil
func normalizeDate(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*s)); err == nil {
			iso := t.Format(time.RFC3339)
			return &iso
		}
	}
	return nil
}
