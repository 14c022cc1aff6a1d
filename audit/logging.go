// Package audit provides the observability surface of the toolkit: a
// process-wide diagnostic logger with per-subsystem categories, and a
// pluggable audit event handler registry.
//
// Both surfaces are fire-and-forget: emitting a record or an event never
// blocks protocol work and never fails.
package audit

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Category identifies the subsystem emitting a diagnostic record.
type Category string

const (
	CategoryConnection   Category = "connection"
	CategoryAssociation  Category = "association"
	CategoryPDU          Category = "pdu"
	CategoryDIMSE        Category = "dimse"
	CategoryQuery        Category = "query"
	CategoryRetrieve     Category = "retrieve"
	CategoryVerification Category = "verification"
	CategoryStateMachine Category = "state_machine"
	CategoryPerformance  Category = "performance"
	CategoryStorage      Category = "storage"
	CategoryAudit        Category = "audit"
)

// Logger wraps the process-wide logrus logger with category tagging.
type Logger struct {
	entry *logrus.Entry
}

var (
	logMu  sync.RWMutex
	logger = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Log returns the process-wide diagnostic logger.
func Log() *Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return &Logger{entry: logrus.NewEntry(logger)}
}

// SetLevel adjusts the diagnostic log level.
func SetLevel(level logrus.Level) {
	logMu.Lock()
	defer logMu.Unlock()
	logger.SetLevel(level)
}

// SetOutput redirects diagnostic output.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger.SetOutput(w)
}

// SetFormatter replaces the diagnostic log formatter.
func SetFormatter(f logrus.Formatter) {
	logMu.Lock()
	defer logMu.Unlock()
	logger.SetFormatter(f)
}

// WithCategory tags subsequent fields and the record with a subsystem
// category.
func (l *Logger) WithCategory(c Category) *logrus.Entry {
	return l.entry.WithField("category", string(c))
}
