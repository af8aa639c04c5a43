package config

import (
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

// InitLogger applies level and format ("text" or "json") to the shared logger.
func InitLogger(level, format string) {
	if strings.EqualFold(format, "json") {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
}
