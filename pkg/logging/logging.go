package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var logFile *os.File

/*
Init configures the package-level logger. An empty path keeps logging on
stderr, which leaves stdout free for the stdio MCP transport.
*/
func Init(level, format, path string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	formatter, err := parseFormat(format)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr

	if path != "" {
		logFile, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}

		out = logFile
	}

	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(formatter)
	log.SetReportTimestamp(true)
	log.SetReportCaller(lvl == log.DebugLevel)

	log.Debug("logging initialized", "level", lvl, "file", path)
	return nil
}

func parseFormat(format string) (log.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}

	return 0, fmt.Errorf("invalid log format %q", format)
}

// Close closes the log file.
func Close() {
	if logFile != nil {
		log.SetOutput(os.Stderr)
		logFile.Close()
		logFile = nil
	}
}
