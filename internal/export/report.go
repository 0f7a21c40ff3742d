package export

import (
	"time"

	"budgeteer/internal/budget"
	"budgeteer/internal/core"
)

type (
	// Row is one category line of a rendered report.
	Row struct {
		Category       string
		Budgeted       core.Money
		Actual         core.Money
		Difference     core.Money
		PercentageUsed float64
	}

	// Report is a flat, sink-agnostic rendering of a budget report.
	Report struct {
		Title           string
		GeneratedAt     time.Time
		Rows            []Row
		TotalBudgeted   core.Money
		TotalActual     core.Money
		TotalDifference core.Money
	}
)

// FromBudget flattens a budget report into rows, depth first, so the
// sink prints children directly under their parents.
func FromBudget(title string, r budget.Report) Report {
	out := Report{
		Title:           title,
		GeneratedAt:     time.Now(),
		TotalBudgeted:   r.TotalBudgeted,
		TotalActual:     r.TotalActual,
		TotalDifference: r.TotalDifference,
	}
	for _, entry := range r.Entries {
		out.Rows = appendEntry(out.Rows, entry)
	}
	return out
}

func appendEntry(rows []Row, e budget.Entry) []Row {
	rows = append(rows, Row{
		Category:       e.Category,
		Budgeted:       e.Budgeted,
		Actual:         e.Actual,
		Difference:     e.Difference,
		PercentageUsed: e.PercentageUsed,
	})
	for _, child := range e.Children {
		rows = appendEntry(rows, child)
	}
	return rows
}
