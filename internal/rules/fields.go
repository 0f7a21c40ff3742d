package rules

import (
	"fmt"
	"strings"

	"budgeteer/internal/core"
)

// Field names a transaction attribute a rule matches against. A field
// may navigate one level into a nested attribute with a single dot
// (counterparty.name); more than one dot is invalid.
type Field string

const (
	FieldDescription      Field = "description"
	FieldCounterparty     Field = "counterparty"
	FieldCounterpartyName Field = "counterparty.name"
	FieldCounterpartyAcct Field = "counterparty.account"
	FieldBankAccountName  Field = "bank_account.name"
	FieldBankAccountIBAN  Field = "bank_account.iban"
	FieldAmount           Field = "amount"
)

// stringFields are the fields resolvable to text; FieldAmount is the
// only numeric field.
var stringFields = map[Field]bool{
	FieldDescription:      true,
	FieldCounterparty:     true,
	FieldCounterpartyName: true,
	FieldCounterpartyAcct: true,
	FieldBankAccountName:  true,
	FieldBankAccountIBAN:  true,
}

// Validate checks the field path: at most one dot, and a known name.
func (f Field) Validate() error {
	if strings.Count(string(f), ".") > 1 {
		return fmt.Errorf("field %q navigates more than one level: %w", f, ErrInvalidRule)
	}
	if f != FieldAmount && !stringFields[f] {
		return fmt.Errorf("field %q: %w", f, ErrUnknownField)
	}
	return nil
}

// IsNumeric reports whether the field resolves to a number.
func (f Field) IsNumeric() bool {
	return f == FieldAmount
}

// resolve extracts the field's textual value from a transaction. A
// missing value resolves to ("", false) and never errors; the field
// then simply does not match.
func (f Field) resolve(tx *core.Transaction) (string, bool) {
	if tx == nil {
		return "", false
	}
	var v string
	switch f {
	case FieldDescription:
		v = tx.Description
	case FieldCounterparty, FieldCounterpartyName:
		v = tx.Counterparty.Name
	case FieldCounterpartyAcct:
		v = tx.Counterparty.Account
	case FieldBankAccountName:
		v = tx.BankAccount.Name
	case FieldBankAccountIBAN:
		v = tx.BankAccount.IBAN
	default:
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}
