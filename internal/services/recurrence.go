package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgeteer/internal/analysis"
	"budgeteer/internal/core"
	"budgeteer/internal/period"
)

const (
	// minRecurringMonths is how many distinct months a counterparty must
	// appear in before its transactions count as recurring.
	minRecurringMonths = 3

	// amountTolerance is the allowed relative spread between the
	// smallest and largest amount of a recurring group. Rent is stable,
	// groceries are not.
	amountTolerance = 0.1
)

// RecurrenceStore persists the recurring flag.
type RecurrenceStore interface {
	analysis.TransactionSource
	SetTransactionRecurring(ctx context.Context, transactionID int64, recurring bool) error
}

// RecurrenceDetector flags recurring transactions: same counterparty,
// stable amount, present in enough distinct months. The flag feeds the
// per-side recurrence filters of the period reports.
type RecurrenceDetector struct {
	store RecurrenceStore
}

func NewRecurrenceDetector(store RecurrenceStore) *RecurrenceDetector {
	return &RecurrenceDetector{store: store}
}

// DetectAndMark scans the account's transactions in the range, marks
// the recurring ones and returns how many were flagged.
func (d *RecurrenceDetector) DetectAndMark(ctx context.Context, accountID int64, r period.DateRange) (int, error) {
	txs, err := d.store.TransactionsInRange(ctx, accountID, r)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}

	groups := make(map[string][]*core.Transaction)
	for i := range txs {
		tx := &txs[i]
		key := groupKey(tx)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], tx)
	}

	marked := 0
	for key, group := range groups {
		if !isRecurringGroup(group) {
			continue
		}
		for _, tx := range group {
			if tx.IsRecurring {
				continue
			}
			if err := d.store.SetTransactionRecurring(ctx, tx.ID, true); err != nil {
				slog.ErrorContext(ctx, "Failed to mark transaction recurring",
					"transaction_id", tx.ID, "error", err)
				continue
			}
			tx.IsRecurring = true
			marked++
		}
		slog.InfoContext(ctx, "Recurring group detected",
			"account_id", accountID,
			"counterparty", key,
			"occurrences", len(group))
	}

	return marked, nil
}

func groupKey(tx *core.Transaction) string {
	name := strings.ToLower(strings.TrimSpace(tx.Counterparty.Name))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(tx.Description))
	}
	return name
}

func isRecurringGroup(group []*core.Transaction) bool {
	if len(group) < minRecurringMonths {
		return false
	}

	months := make(map[string]bool)
	var minAbs, maxAbs int64
	for i, tx := range group {
		months[tx.BookingDate.Format("2006-01")] = true
		abs := tx.Amount.Abs().Cents
		if i == 0 || abs < minAbs {
			minAbs = abs
		}
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	if len(months) < minRecurringMonths {
		return false
	}
	if maxAbs == 0 {
		return false
	}
	return float64(maxAbs-minAbs)/float64(maxAbs) <= amountTolerance
}

// MonthsBack is a convenience range for the detector: the n full months
// before now, plus the current month so far.
func MonthsBack(now time.Time, n int) period.DateRange {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -n, 0)
	return period.DateRange{Start: start, End: now}
}
