package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"medparse/internal/config"
)

// Setup configures the process-wide logrus logger from cfg.
// Unknown levels fall back to info.
func Setup(cfg config.LogConfig) {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
