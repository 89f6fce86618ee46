// internal/outage/threshold.go
package outage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"

	"github.com/signalnine/twiliot/internal/protocol"
)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var relativeRe = regexp.MustCompile(`(\d+)\s*([a-zµ]+)`)

// unit spellings mapped to str2duration suffixes; days > 0 marks calendar units
var units = map[string]struct {
	suffix string
	days   int
}{
	"ms": {suffix: "ms"}, "millisecond": {suffix: "ms"}, "milliseconds": {suffix: "ms"},
	"s": {suffix: "s"}, "sec": {suffix: "s"}, "secs": {suffix: "s"}, "second": {suffix: "s"}, "seconds": {suffix: "s"},
	"m": {suffix: "m"}, "min": {suffix: "m"}, "mins": {suffix: "m"}, "minute": {suffix: "m"}, "minutes": {suffix: "m"},
	"h": {suffix: "h"}, "hr": {suffix: "h"}, "hrs": {suffix: "h"}, "hour": {suffix: "h"}, "hours": {suffix: "h"},
	"d": {suffix: "d"}, "day": {suffix: "d"}, "days": {suffix: "d"},
	"w": {suffix: "w"}, "wk": {suffix: "w"}, "wks": {suffix: "w"}, "week": {suffix: "w"}, "weeks": {suffix: "w"},
	"mo": {days: 30}, "month": {days: 30}, "months": {days: 30},
	"y": {days: 365}, "yr": {days: 365}, "yrs": {days: 365}, "year": {days: 365}, "years": {days: 365},
}

// ParseThreshold turns a time expression into an instant relative to now.
// Relative forms ("1d", "36h", "2 days ago", "1w 2d") count back from now;
// absolute forms are RFC 3339 or plain dates in now's location.
func ParseThreshold(expr string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return time.Time{}, protocol.Missing("max downtime")
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t, nil
		}
	}

	s := strings.ToLower(raw)
	switch s {
	case "now":
		return now, nil
	case "yesterday":
		return now.Add(-24 * time.Hour), nil
	}

	d, err := parseRelative(s)
	if err != nil {
		return time.Time{}, &protocol.ValidationError{
			Field: "max downtime",
			Msg:   fmt.Sprintf("cannot parse time expression %q: %v", expr, err),
		}
	}
	return now.Add(-d), nil
}

func parseRelative(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.TrimSuffix(s, "ago"))
	s = strings.NewReplacer(",", " ", " and ", " ").Replace(s)

	matches := relativeRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no duration found")
	}
	if rest := strings.TrimSpace(relativeRe.ReplaceAllString(s, "")); rest != "" {
		return 0, fmt.Errorf("unexpected %q", rest)
	}

	var compact strings.Builder
	for _, m := range matches {
		u, ok := units[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q", m[2])
		}
		if u.days > 0 {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, err
			}
			compact.WriteString(strconv.Itoa(n*u.days) + "d")
			continue
		}
		compact.WriteString(m[1] + u.suffix)
	}

	d, err := str2duration.ParseDuration(compact.String())
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
