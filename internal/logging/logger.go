package logging

import (
	"context"
	"log"
)

// Logger provides structured logging scoped to a project room or request.
type Logger struct {
	scope string
}

// NewLogger creates a logger with request context. The request ID is set by
// middleware; room-scoped callers use ForProject instead.
func NewLogger(ctx context.Context) *Logger {
	scope := "unknown"
	if rid, ok := ctx.Value("request_id").(string); ok && rid != "" {
		scope = rid
	}
	return &Logger{scope: scope}
}

// ForProject creates a logger scoped to a project room.
func ForProject(projectID string) *Logger {
	return &Logger{scope: "project:" + projectID}
}

// LogError logs an error with context
func (l *Logger) LogError(operation string, err error) {
	log.Printf("[error] scope=%s operation=%s error=%v", l.scope, operation, err)
}

// LogErrorf logs a formatted error with context
func (l *Logger) LogErrorf(operation string, format string, args ...interface{}) {
	log.Printf("[error] scope=%s operation=%s "+format, append([]interface{}{l.scope, operation}, args...)...)
}

// LogInfo logs an info message with context
func (l *Logger) LogInfo(operation string, message string) {
	log.Printf("[info] scope=%s operation=%s message=%s", l.scope, operation, message)
}

// LogInfof logs a formatted info message with context
func (l *Logger) LogInfof(operation string, format string, args ...interface{}) {
	log.Printf("[info] scope=%s operation=%s "+format, append([]interface{}{l.scope, operation}, args...)...)
}

// LogWarn logs a warning with context
func (l *Logger) LogWarn(operation string, message string) {
	log.Printf("[warn] scope=%s operation=%s message=%s", l.scope, operation, message)
}

// LogWarnf logs a formatted warning with context
func (l *Logger) LogWarnf(operation string, format string, args ...interface{}) {
	log.Printf("[warn] scope=%s operation=%s "+format, append([]interface{}{l.scope, operation}, args...)...)
}
