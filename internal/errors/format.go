package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var pe *ProjectError
	if !stderrors.As(err, &pe) {
		pe = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", pe.Message)
	if pe.Cause != nil && pe.Cause.Error() != pe.Message {
		fmt.Fprintf(&sb, "  Cause: %v\n", pe.Cause)
	}
	if pe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", pe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", pe.Code)

	return sb.String()
}

// LogAttrs returns slog attributes describing err.
// Plain errors produce a single "error" attribute.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var pe *ProjectError
	if !stderrors.As(err, &pe) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("error_code", pe.Code),
		slog.String("category", string(pe.Category)),
		slog.String("severity", string(pe.Severity)),
		slog.Bool("retryable", pe.Retryable),
	}
	for k, v := range pe.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
