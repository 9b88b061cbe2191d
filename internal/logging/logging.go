// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup applies level and format ("text" or "json") to the standard logger
// and returns it tagged with the service name.
func Setup(service, level, format string, out io.Writer) *log.Entry {
	if out != nil {
		log.SetOutput(out)
	}
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	entry := log.WithField("service", service)
	if err != nil && level != "" {
		entry.Warnf("unknown log level %q, using info", level)
	}
	return entry
}
