// Package export renders budget reports for external sinks.
package export

import "context"

// ReportWriter writes a rendered report to an external destination.
type ReportWriter interface {
	WriteReport(ctx context.Context, report Report) error
}
