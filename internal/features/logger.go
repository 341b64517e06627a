package features

import (
	"sync"

	"github.com/tphakala/agrisense/internal/logger"
)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the features module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("features")
	})
	return pkgLogger
}
