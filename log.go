package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging points the global logger at path, "-" meaning stderr. The TUI
// owns the terminal, so the default is a file meant for tail -f.
func setupLogging(path string, verbose bool) (io.Closer, error) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var out *os.File
	var closer io.Closer = io.NopCloser(nil)
	if path == "-" {
		out = os.Stderr
	} else {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		out = f
		closer = f
	}

	startTime := time.Now()
	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    false,
		TimeFormat: "15:04:05",
	}
	// elapsed time since startup rather than wall clock
	writer.FormatTimestamp = func(i any) string {
		elapsed := time.Since(startTime)

		hours := int(elapsed.Hours())
		minutes := int(elapsed.Minutes()) % 60
		seconds := int(elapsed.Seconds()) % 60
		millis := int(elapsed.Milliseconds()) % 1000

		return fmt.Sprintf("\x1b[90m[+%02d:%02d:%02d.%03d]\x1b[0m",
			hours, minutes, seconds, millis)
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Caller().Logger()
	log.Debug().Msg("Running in verbose mode")
	return closer, nil
}
