package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across Yanantin.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Components
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldQuery     = "query"
	FieldStatus    = "status"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Files and network
	FieldFile     = "file"
	FieldURL      = "url"
	FieldCalendar = "calendar"

	// Domain
	FieldSymbol   = "symbol"    // glyph from package sym
	FieldTensorID = "tensor_id" // tensor record id
	FieldClaimID  = "claim_id"  // key claim id
	FieldRecord   = "record"    // record kind (tensor, correction, ...)
	FieldCommit   = "commit"    // git commit hash
	FieldItemType = "item_type" // pulse work item type
	FieldTrigger  = "trigger"   // pulse work item trigger
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	store := memory.New(logger.ComponentLogger("apacheta.memory"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	itemLogger := logger.ChildLogger(base, logger.FieldItemType, item.Type)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return OrNop(parent).With(keysAndValues...)
}
