package errors

import (
	"encoding/json"
	"errors"
)

// Report is the canonical structured error type for modguard. Errors
// built with New carry a *Report (wrapped as a *ReportError) so callers
// can recover the code and structured data with errors.As instead of
// string-matching messages. File I/O and parse failures in cliformat and
// manifest, ParseAccessibility, and RecordingHandler.Flush return plain
// fmt errors instead.
type Report struct {
	Schema  string         `json:"schema"`          // Always "modguard.error/v1"
	Code    string         `json:"code"`            // e.g. "BND002"
	Phase   string         `json:"phase"`           // "binding", "loader", "resolve", ...
	Message string         `json:"message"`         // Human-readable message
	Data    map[string]any `json:"data,omitempty"`  // Structured data
}

// ReportError wraps a Report so it satisfies the error interface while
// surviving errors.As unwrapping.
type ReportError struct {
	Rep *Report
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport extracts a *Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// New builds and wraps a Report in one call.
func New(phase, code, message string, data map[string]any) error {
	return &ReportError{Rep: &Report{
		Schema:  "modguard.error/v1",
		Code:    code,
		Phase:   phase,
		Message: message,
		Data:    data,
	}}
}

// ToJSON renders the report deterministically.
func (r *Report) ToJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
