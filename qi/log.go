package qi

import (
	"github.com/sirupsen/logrus"
)

// NewLogger returns a text logger at the named level. Unknown level names
// fall back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// ModuleLogger tags every entry of root with the module it came from.
func ModuleLogger(root *logrus.Logger, module string) *logrus.Entry {
	if root == nil {
		root = logrus.StandardLogger()
	}
	return root.WithField("module", module)
}
