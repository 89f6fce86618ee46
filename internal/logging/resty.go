// internal/logging/resty.go
package logging

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// RestyLogger adapts a zerolog logger to resty's Logger interface
type RestyLogger struct {
	L zerolog.Logger
}

func (r RestyLogger) Errorf(format string, v ...interface{}) {
	r.L.Error().Msg(trim(format, v))
}

func (r RestyLogger) Warnf(format string, v ...interface{}) {
	r.L.Warn().Msg(trim(format, v))
}

func (r RestyLogger) Debugf(format string, v ...interface{}) {
	r.L.Debug().Msg(trim(format, v))
}

// DebugEnabled reports whether l emits debug events; clients turn on resty's
// request dumps with it
func DebugEnabled(l zerolog.Logger) bool {
	return l.GetLevel() <= zerolog.DebugLevel && zerolog.GlobalLevel() <= zerolog.DebugLevel
}

// RedactAuth keeps credentials out of resty's debug dumps
func RedactAuth(rl *resty.RequestLog) error {
	if rl.Header.Get("Authorization") != "" {
		rl.Header.Set("Authorization", "[redacted]")
	}
	return nil
}

func trim(format string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
