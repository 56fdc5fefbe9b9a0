// Package engine wires the backup/verify/restore/cleanup components
// together behind five operations (Backup, Verify, VerifyReport,
// Restore, Cleanup). Context replaces ambient global config/logger
// singletons with an explicit value constructed once per invocation
// and passed to every operation.
package engine

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"

	"github.com/example/fileguardian/internal/cloud"
	"github.com/example/fileguardian/internal/logger"
	"github.com/example/fileguardian/internal/metrics"
)

// Context carries everything an operation needs besides its explicit
// arguments: no package in this module keeps process-global mutable
// state.
type Context struct {
	Logger      logger.Logger
	Clock       func() time.Time
	HashWorkers int
	Metrics     *metrics.Collector
	Mirror      cloud.Backend // optional; Backup does not read it (mirroring is driven by BackupOptions.Mirror)

	// DefaultReportDir is where a signed report is written when the
	// caller asks for signing but does not name an output path
	// explicitly. It defaults to the platform's XDG data directory
	// (Library/Application Support on macOS, %LOCALAPPDATA% on
	// Windows) rather than a hand-rolled home-directory join, but
	// remains an explicit, overridable field: the caller can always
	// set it (or BackupOptions.ReportOutputPath) to bypass it.
	DefaultReportDir string
}

// NewContext returns a Context with sensible defaults: a null
// logger, the real clock, and HashWorkers capped at min(NumCPU(), 8).
func NewContext() *Context {
	return &Context{
		Logger:           logger.NewNullLogger(),
		Clock:            time.Now,
		HashWorkers:      defaultHashWorkers(),
		DefaultReportDir: filepath.Join(xdg.DataHome, "fileguardian", "reports"),
	}
}

func defaultHashWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Context) log() logger.Logger {
	if c.Logger == nil {
		return logger.NewNullLogger()
	}
	return c.Logger
}

func (c *Context) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}
