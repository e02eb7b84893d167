package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"workerd/internal/httpapi"
)

// setupLogging builds the process logger and installs it globally and in
// the HTTP layer. format is "json" or "console".
func setupLogging(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer
	switch strings.ToLower(format) {
	case "", "json":
		out = w
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Logger{}, fmt.Errorf("log format %q: want json or console", format)
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	log.Logger = l
	httpapi.SetLogger(l)
	return l, nil
}
