package core

import "time"

type (
	// Counterparty identifies the other side of a transaction as it
	// appears on the bank statement.
	Counterparty struct {
		Name    string
		Account string
	}

	// BankAccount is the account a transaction belongs to.
	BankAccount struct {
		ID   int64
		Name string
		IBAN string
	}

	// Transaction is an imported bank transaction. Amount is signed:
	// non-negative amounts are revenue, negative amounts are expenses.
	// Category is assigned by the categorization engine unless
	// ManuallyAssigned is set, in which case the engine must leave it
	// alone.
	Transaction struct {
		ID               int64
		BookingDate      time.Time
		Amount           Money
		Description      string
		Counterparty     Counterparty
		BankAccount      BankAccount
		Category         *Category
		IsRecurring      bool
		ManuallyAssigned bool
	}
)

// TypeForAmount returns the transaction type implied by a signed amount.
func TypeForAmount(m Money) TransactionType {
	if m.Cents >= 0 {
		return Revenue
	}
	return Expenses
}

// Type returns the transaction's type, derived from its amount.
func (t *Transaction) Type() TransactionType {
	return TypeForAmount(t.Amount)
}
