package conf

import (
	"github.com/wavebar/wavebar/internal/buildinfo"
	"github.com/wavebar/wavebar/internal/logger"
)

// Context carries state shared by commands once configuration is loaded.
type Context struct {
	Settings  *Settings
	Logger    *logger.CentralLogger
	BuildInfo *buildinfo.Context
}

// Log returns the unscoped root logger, or a console logger before Logger
// is set. Subsystems scope it with Module.
func (c *Context) Log() logger.Logger {
	if c == nil || c.Logger == nil {
		return logger.NewConsoleLogger("", logger.LogLevelInfo)
	}
	return c.Logger.Module("")
}

// Close flushes and closes the logger.
func (c *Context) Close() error {
	if c == nil || c.Logger == nil {
		return nil
	}
	return c.Logger.Close()
}
