// Package report funnels the consolidation pass's user-facing messages.
// Warnings and announcements are always emitted; detail lines only under
// verbose. Every message is also retained so callers (and tests) can inspect
// exactly what a run reported without scraping log output.
package report

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reporter collects and logs the messages of one consolidation run.
type Reporter struct {
	logger  *zap.Logger
	runID   string
	verbose bool

	mu       sync.Mutex
	infos    []string
	warnings []string
}

// New returns a Reporter bound to the given logger. A nil logger is
// replaced with a no-op one so library callers need no zap setup.
func New(logger *zap.Logger, verbose bool) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Reporter{
		logger:  logger.With(zap.String("run_id", id)),
		runID:   id,
		verbose: verbose,
	}
}

// RunID identifies this run in log output.
func (r *Reporter) RunID() string { return r.runID }

// Verbose reports whether detail lines are enabled.
func (r *Reporter) Verbose() bool { return r.verbose }

// Announce emits a message regardless of verbosity.
func (r *Reporter) Announce(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Info(msg)
	r.mu.Lock()
	r.infos = append(r.infos, msg)
	r.mu.Unlock()
}

// Detail emits an informational message only when verbose is enabled.
func (r *Reporter) Detail(format string, args ...interface{}) {
	if !r.verbose {
		return
	}
	r.Announce(format, args...)
}

// Warn emits a recoverable-failure message. Warnings are always recorded.
func (r *Reporter) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn(msg)
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.mu.Unlock()
}

// Infos returns every announced message, in order.
func (r *Reporter) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

// Warnings returns every warning, in order.
func (r *Reporter) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}
