package config

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the level and formatter from cfg to the standard
// logrus logger. Unknown levels fall back to info.
func ConfigureLogging(cfg Config) {
	log.SetOutput(os.Stdout)
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
