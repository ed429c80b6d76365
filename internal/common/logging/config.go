package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

// ConfigureLogging sets up the standard logger for an application: text output with full timestamps on stdout at
// info level.  Call ApplyConfig once configuration has been loaded.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: RFC3339Milli})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// ApplyConfig sets the level (e.g. "debug", "info", "warn") and format ("text" or "json") of the standard logger.
func ApplyConfig(level string, format string) error {
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return errors.WithStack(err)
		}
		log.SetLevel(parsed)
	}

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: RFC3339Milli})
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: RFC3339Milli})
	default:
		return errors.Errorf("unknown log format %q, expected text or json", format)
	}
	return nil
}

// RegisterMetricsHook counts log lines by level in the default prometheus registry.  It must only be called once
// per process.
func RegisterMetricsHook() error {
	hook, err := promrus.NewPrometheusHook()
	if err != nil {
		return errors.WithStack(err)
	}
	log.AddHook(hook)
	return nil
}
