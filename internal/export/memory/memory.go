// Package memory is an in-process ReportWriter for tests and local use.
package memory

import (
	"context"
	"sync"

	"budgeteer/internal/export"
)

type Writer struct {
	mu      sync.Mutex
	reports []export.Report
}

var _ export.ReportWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// WriteReport stores the report.
func (w *Writer) WriteReport(_ context.Context, report export.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, report)
	return nil
}

// Reports returns all stored reports in write order.
func (w *Writer) Reports() []export.Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]export.Report(nil), w.reports...)
}
