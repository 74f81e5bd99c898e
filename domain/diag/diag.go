package diag

import "fmt"

// Severity classifies how serious a diagnostic finding is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Span points at the source location a diagnostic refers to.
type Span struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Diagnostic is a single finding produced by the parser or validator.
// Codes are stable and safe to match on programmatically.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Span     *Span    `json:"span,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Span != nil {
		return fmt.Sprintf("%s [%s] %d:%d: %s", d.Severity, d.Code, d.Span.Line, d.Span.Column, d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", d.Severity, d.Code, d.Message)
}

// Errorf builds an error-severity diagnostic.
func Errorf(code string, span *Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Span: span}
}

// Warnf builds a warning-severity diagnostic.
func Warnf(code string, span *Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...), Span: span}
}

// Infof builds an info-severity diagnostic.
func Infof(code string, span *Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Severity: SeverityInfo, Code: code, Message: fmt.Sprintf(format, args...), Span: span}
}

// HasErrors reports whether any diagnostic in the slice is error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors filters the slice down to error-severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
