package app

import (
	"log/slog"

	"github.com/treykane/cli-notation/internal/logging"
)

// appLog is the package-level structured logger for the terminal editor.
//
// Output goes to stderr so it does not interfere with the Bubble Tea
// screen on stdout. The level is controlled by NOTATION_LOG_LEVEL.
var appLog = logging.New("app")

// setStatusError shows status in the footer and logs err with attrs.
//
// Usage:
//
//	m.setStatusError("Save failed", err, "project", id)
func (m *Model) setStatusError(status string, err error, attrs ...any) {
	m.status = status
	fields := make([]any, 0, len(attrs)+2)
	fields = append(fields, slog.Any("error", err))
	fields = append(fields, attrs...)
	appLog.Error(status, fields...)
}
