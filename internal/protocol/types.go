// internal/protocol/types.go
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Asset is a tracked object as returned by the platform
type Asset struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	CategoryID    string     `json:"categoryId"`
	LastUpdatedAt *Timestamp `json:"lastUpdatedAt"`
	LastUpdatedBy string     `json:"lastUpdatedBy"`
}

// Pixel is an opaque tag record; only the id is interpreted
type Pixel map[string]any

// ID returns the pixel identifier, or "" when the record has none
func (p Pixel) ID() string {
	for _, key := range []string{"id", "tagId"} {
		if v, ok := p[key].(string); ok {
			return v
		}
	}
	return ""
}

// OfflineAsset is an asset whose last update is older than the alert threshold
type OfflineAsset struct {
	ID            string    `json:"id"`
	CategoryID    string    `json:"categoryId"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"`
	Downtime      Duration  `json:"downtime"`
}

// SMSResult is the provider's view of a sent message.
// Date fields hold RFC 3339 strings, or nil when the provider sent none.
type SMSResult struct {
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

// Timestamp accepts epoch seconds, epoch milliseconds or RFC 3339 text.
// A null, empty or zero epoch value leaves the zero time.
type Timestamp struct {
	time.Time
}

// msThreshold separates epoch seconds from epoch milliseconds (~1973 in ms)
const msThreshold = 1e11

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			parsed, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fmt.Errorf("timestamp %q: %w", s, err)
			}
			t.Time = parsed
			return nil
		}
		raw = s
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", raw, err)
	}
	if f == 0 {
		return nil
	}
	t.Time = fromEpoch(f)
	return nil
}

// Missing reports whether no usable time was recorded
func (t *Timestamp) Missing() bool {
	return t == nil || t.IsZero() || t.Unix() == 0
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func fromEpoch(f float64) time.Time {
	if math.Abs(f) >= msThreshold {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Duration serializes as a Go duration string rounded down to seconds
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).Truncate(time.Second).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Alert actions recorded for each run
const (
	ActionHealthy  = "healthy"
	ActionSkipped  = "skipped"
	ActionDetail   = "detail"
	ActionOverflow = "overflow"
)

// AlertRun is one alert run as kept in the history log
type AlertRun struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	MaxDowntime   string    `json:"max_downtime"`
	AssetsChecked int       `json:"assets_checked"`
	OfflineCount  int       `json:"offline_count"`
	Action        string    `json:"action"`
	AlertFile     string    `json:"alert_file,omitempty"`
	Recipient     string    `json:"recipient,omitempty"`
	MessageSID    string    `json:"message_sid,omitempty"`
	MessageStatus string    `json:"message_status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
