package errors

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
)

// RecordedError is an error captured by an ErrorCollector.
type RecordedError struct {
	Err       error
	Code      string
	Timestamp time.Time
}

// ErrorCollector collects runtime errors raised outside of a direct caller,
// such as effect re-runs triggered by store writes.
type ErrorCollector struct {
	errors []RecordedError
	limit  int
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector keeping at most limit
// errors. A limit of zero keeps every error.
func NewErrorCollector(limit int) *ErrorCollector {
	return &ErrorCollector{
		errors: make([]RecordedError, 0),
		limit:  limit,
	}
}

// AddError adds an error to the collector.
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	rec := RecordedError{Err: err, Timestamp: time.Now()}
	var me *MistError
	if errors.As(err, &me) {
		rec.Code = me.Code
	}

	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, rec)
	if ec.limit > 0 && len(ec.errors) > ec.limit {
		ec.errors = ec.errors[len(ec.errors)-ec.limit:]
	}
}

// GetErrors returns all collected errors
func (ec *ErrorCollector) GetErrors() []RecordedError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	// Return a copy to avoid race conditions
	result := make([]RecordedError, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// Last returns the most recent error, or nil.
func (ec *ErrorCollector) Last() error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	if len(ec.errors) == 0 {
		return nil
	}
	return ec.errors[len(ec.errors)-1].Err
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = ec.errors[:0]
}

// ErrorOverlay generates HTML for the development error overlay.
func (ec *ErrorCollector) ErrorOverlay() string {
	if !ec.HasErrors() {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div id="mist-error-overlay" style="position: fixed; top: 0; left: 0; width: 100%; ` +
		`background: rgba(0, 0, 0, 0.85); color: white; font-family: monospace; font-size: 14px; ` +
		`z-index: 9999; padding: 20px; box-sizing: border-box;">` +
		`<h2 style="margin: 0 0 12px; color: #ff6b6b;">Runtime Errors</h2>` +
		`<button type="button" data-mist-close>Close</button>`)

	for _, rec := range ec.GetErrors() {
		code := rec.Code
		if code == "" {
			code = "ERROR"
		}
		fmt.Fprintf(&b,
			`<div style="background: #2d3748; padding: 10px; margin-top: 10px; border-left: 4px solid #ff6b6b;">`+
				`<strong>%s</strong> <span style="color: #a0aec0;">%s</span><div>%s</div></div>`,
			html.EscapeString(code),
			rec.Timestamp.Format("15:04:05"),
			html.EscapeString(rec.Err.Error()))
	}

	b.WriteString(`</div>`)
	return b.String()
}
