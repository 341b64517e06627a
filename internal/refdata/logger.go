package refdata

import (
	"sync"

	"github.com/tphakala/agrisense/internal/logger"
)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the refdata module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("refdata")
	})
	return pkgLogger
}
