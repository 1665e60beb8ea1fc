package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// New creates a console adapter. With jsonFormat the output is plain zerolog JSON,
// otherwise a padded, optionally colored console layout.
func New(level, dateTimeLayout string, colored, jsonFormat bool) (*ZerologAdapter, error) {
	return NewWithWriter(os.Stdout, level, dateTimeLayout, colored, jsonFormat)
}

// NewWithWriter is New writing to out
func NewWithWriter(out io.Writer, level, dateTimeLayout string, colored, jsonFormat bool) (*ZerologAdapter, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var writer io.Writer = out
	if !jsonFormat {
		console := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !colored,
			TimeFormat: dateTimeLayout,
		}
		if colored {
			console.FormatLevel = formatLevel
			console.FormatMessage = formatMessage
			console.FormatCaller = formatCaller
			console.FormatTimestamp = func(i interface{}) string {
				return formatTimestamp(i, dateTimeLayout)
			}
		}
		writer = console
	}

	logger := zerolog.New(writer).
		Level(logLevel).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return NewAdapter(&logger), nil
}

func formatLevel(i interface{}) string {
	level, ok := i.(string)
	if !ok {
		return "UNKNOWN"
	}

	switch level {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue:
		return term.Redf("[ERR]")
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[FTL]")
	default:
		return term.Whitef("[UNK]")
	}
}

func formatMessage(i interface{}) string {
	const maxSize = 60

	msg, ok := i.(string)
	if !ok || len(msg) == 0 {
		return ">"
	}

	if len(msg) > maxSize {
		msg = msg[:maxSize]
	}

	return term.Whitef("> %-*s", maxSize, msg)
}

func formatCaller(i interface{}) string {
	const maxFileSize = 14
	const maxLineSize = 4

	fname, ok := i.(string)
	if !ok || len(fname) == 0 {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(fname), ":")
	if !found {
		return fname
	}

	if len(file) > maxFileSize {
		file = file[:maxFileSize]
	}
	if len(line) > maxLineSize {
		line = line[len(line)-maxLineSize:]
	}

	return term.Yellowf("[%-*s:%*s]", maxFileSize, file, maxLineSize, line)
}

func formatTimestamp(i interface{}, timeLayout string) string {
	strTime, ok := i.(string)
	if !ok {
		return term.Cyanf("[%s]", i)
	}

	if ts, err := time.ParseInLocation(time.RFC3339, strTime, time.Local); err == nil {
		strTime = ts.In(time.Local).Format(timeLayout)
	}

	return term.Cyanf("[%s]", strTime)
}
