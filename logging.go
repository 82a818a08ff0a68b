package sh

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFileLogger builds a *slog.Logger that writes JSON-structured
// records to path, rotating it once it exceeds maxSizeMB. It exists
// for Bg/Piped invocations that run for a long time and whose
// diagnostic trail needs to survive past the lifetime of whatever
// process started them, the same role lumberjack plays for the
// teacher's own long-running daemons.
func RotatingFileLogger(path string, maxSizeMB int) *slog.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

// WithLogFile returns a new Template that logs through a
// RotatingFileLogger at path instead of whatever logger it currently
// uses.
func (t *Template) WithLogFile(path string, maxSizeMB int) *Template {
	return t.WithLogger(RotatingFileLogger(path, maxSizeMB))
}
