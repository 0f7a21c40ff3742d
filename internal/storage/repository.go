// Package storage persists the taxonomy, rule sets, transactions and
// budgets in SQLite. The repository is the single supplier behind the
// categorization registry, the period aggregator and the budget tracker.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"budgeteer/internal/budget"
	"budgeteer/internal/core"
	"budgeteer/internal/period"
	"budgeteer/internal/rules"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateBankAccount registers a bank account. The IBAN is unique.
func (r *SQLiteRepository) CreateBankAccount(ctx context.Context, name, iban string) (core.BankAccount, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bank_accounts (name, iban) VALUES (?, ?)`, name, iban)
	if err != nil {
		return core.BankAccount{}, fmt.Errorf("create bank account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.BankAccount{}, fmt.Errorf("bank account id: %w", err)
	}
	return core.BankAccount{ID: id, Name: name, IBAN: iban}, nil
}

// BankAccounts lists all registered bank accounts.
func (r *SQLiteRepository) BankAccounts(ctx context.Context) ([]core.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, iban FROM bank_accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.BankAccount
	for rows.Next() {
		var a core.BankAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.IBAN); err != nil {
			return nil, fmt.Errorf("scan bank account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CategoriesByType implements categorize.TaxonomySource. Sentinel rows
// are not part of the taxonomy and are never returned.
func (r *SQLiteRepository) CategoriesByType(ctx context.Context, t core.TransactionType) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, qualified_name, is_root, parent_id
		 FROM categories
		 WHERE type = ? AND sentinel = 0
		 ORDER BY id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("list categories for %s: %w", t, err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c        core.Category
			parentID sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.QualifiedName, &c.IsRoot, &parentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = t
		c.ParentID = parentID.Int64
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory adds a child category under parentID. The qualified
// name is derived from the parent's; a clash within the type maps to
// core.ErrDuplicateCategory.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, parentID int64, name string, t core.TransactionType) (core.Category, error) {
	var parentQualified string
	err := r.db.QueryRowContext(ctx,
		`SELECT qualified_name FROM categories WHERE id = ? AND type = ? AND sentinel = 0`,
		parentID, string(t)).Scan(&parentQualified)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("parent category %d: %w", parentID, core.ErrCategoryNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("load parent category: %w", err)
	}

	c := core.Category{
		Name:          name,
		QualifiedName: core.QualifiedNameFor(parentQualified, name),
		Type:          t,
		ParentID:      parentID,
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, qualified_name, type, parent_id) VALUES (?, ?, ?, ?)`,
		c.Name, c.QualifiedName, string(c.Type), c.ParentID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.Category{}, fmt.Errorf("%q: %w", c.QualifiedName, core.ErrDuplicateCategory)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}

	slog.InfoContext(ctx, "Category created",
		"id", c.ID, "qualified_name", c.QualifiedName, "type", c.Type)
	return c, nil
}

// RuleSetForCategory implements categorize.RuleSetSource. A category
// without a stored rule set yields (nil, nil).
func (r *SQLiteRepository) RuleSetForCategory(ctx context.Context, categoryID int64) (rules.Node, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM rule_set_wrappers WHERE category_id = ?`, categoryID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rule set for category %d: %w", categoryID, err)
	}

	node, err := rules.Unmarshal([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode rule set for category %d: %w", categoryID, err)
	}
	return node, nil
}

// SaveRuleSet stores the rule set attached to a category, replacing any
// previous one.
func (r *SQLiteRepository) SaveRuleSet(ctx context.Context, categoryID int64, node rules.Node) error {
	payload, err := rules.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode rule set for category %d: %w", categoryID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO rule_set_wrappers (category_id, payload) VALUES (?, ?)
		 ON CONFLICT (category_id)
		 DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		categoryID, string(payload))
	if err != nil {
		return fmt.Errorf("save rule set for category %d: %w", categoryID, err)
	}

	slog.InfoContext(ctx, "Rule set saved", "category_id", categoryID)
	return nil
}

// DeleteRuleSet detaches the rule set from a category. Deleting a rule
// set that does not exist is not an error.
func (r *SQLiteRepository) DeleteRuleSet(ctx context.Context, categoryID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM rule_set_wrappers WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("delete rule set for category %d: %w", categoryID, err)
	}
	return nil
}

// InsertTransaction stores an imported transaction and returns its ID.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	var categoryID sql.NullInt64
	if tx.Category != nil {
		categoryID = sql.NullInt64{Int64: tx.Category.ID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (booking_date, amount_cents, description, counterparty_name, counterparty_account,
		  bank_account_id, category_id, is_recurring, manually_assigned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.BookingDate.UTC(), tx.Amount.Cents, tx.Description,
		tx.Counterparty.Name, tx.Counterparty.Account,
		tx.BankAccount.ID, categoryID, tx.IsRecurring, tx.ManuallyAssigned)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	return id, nil
}

// TransactionsInRange implements analysis.TransactionSource: all
// transactions of one account whose booking date falls inside the
// range, with the assigned category populated.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, accountID int64, dateRange period.DateRange) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.booking_date, t.amount_cents, t.description,
		        t.counterparty_name, t.counterparty_account,
		        t.is_recurring, t.manually_assigned,
		        a.id, a.name, a.iban,
		        c.id, c.name, c.qualified_name, c.is_root, c.type, c.parent_id
		 FROM transactions t
		 JOIN bank_accounts a ON a.id = t.bank_account_id
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.bank_account_id = ? AND t.booking_date >= ? AND t.booking_date <= ?
		 ORDER BY t.booking_date, t.id`,
		accountID, dateRange.Start.UTC(), dateRange.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// UncategorizedTransactions returns up to limit transactions of an
// account that have no category yet and were not assigned manually.
func (r *SQLiteRepository) UncategorizedTransactions(ctx context.Context, accountID int64, limit int) ([]*core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.booking_date, t.amount_cents, t.description,
		        t.counterparty_name, t.counterparty_account,
		        t.is_recurring, t.manually_assigned,
		        a.id, a.name, a.iban,
		        c.id, c.name, c.qualified_name, c.is_root, c.type, c.parent_id
		 FROM transactions t
		 JOIN bank_accounts a ON a.id = t.bank_account_id
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.bank_account_id = ? AND t.category_id IS NULL AND t.manually_assigned = 0
		 ORDER BY t.booking_date, t.id
		 LIMIT ?`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncategorized transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Transaction, len(txs))
	for i := range txs {
		out[i] = &txs[i]
	}
	return out, nil
}

// SaveTransactionCategory implements categorize.CategorySaver.
func (r *SQLiteRepository) SaveTransactionCategory(ctx context.Context, transactionID, categoryID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE id = ?`, categoryID, transactionID)
	if err != nil {
		return fmt.Errorf("save transaction category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save transaction category: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d not found", transactionID)
	}
	return nil
}

// ReleaseNoCategoryAssignments clears the NO CATEGORY sentinel from
// every automatically assigned transaction, putting them back into the
// uncategorized pool. Called after a rule set changes so the next
// categorization pass retries them. Returns how many transactions were
// released.
func (r *SQLiteRepository) ReleaseNoCategoryAssignments(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = NULL
		 WHERE category_id = ? AND manually_assigned = 0`,
		core.NoCategoryID)
	if err != nil {
		return 0, fmt.Errorf("release uncategorized transactions: %w", err)
	}
	released, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release uncategorized transactions: %w", err)
	}
	return released, nil
}

// SetTransactionRecurring flips the recurring flag on a transaction.
func (r *SQLiteRepository) SetTransactionRecurring(ctx context.Context, transactionID int64, recurring bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET is_recurring = ? WHERE id = ?`, recurring, transactionID)
	if err != nil {
		return fmt.Errorf("set transaction recurring: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set transaction recurring: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d not found", transactionID)
	}
	return nil
}

// SetBudgetAmount upserts the budgeted amount of one category in an
// account's budget tree.
func (r *SQLiteRepository) SetBudgetAmount(ctx context.Context, accountID, categoryID int64, amount core.Money) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_nodes (account_id, category_id, amount_cents) VALUES (?, ?, ?)
		 ON CONFLICT (account_id, category_id)
		 DO UPDATE SET amount_cents = excluded.amount_cents`,
		accountID, categoryID, amount.Cents)
	if err != nil {
		return fmt.Errorf("set budget amount: %w", err)
	}
	return nil
}

// BudgetTreeForAccount loads the budget tree of one account over the
// category tree of the given type. An account without any budget rows
// of that type maps to core.ErrBudgetNotFound.
func (r *SQLiteRepository) BudgetTreeForAccount(ctx context.Context, accountID int64, t core.TransactionType) (*budget.Tree, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.category_id, b.amount_cents
		 FROM budget_nodes b
		 JOIN categories c ON c.id = b.category_id
		 WHERE b.account_id = ? AND c.type = ?`,
		accountID, string(t))
	if err != nil {
		return nil, fmt.Errorf("load budget nodes: %w", err)
	}
	defer rows.Close()

	amounts := make(map[int64]core.Money)
	for rows.Next() {
		var (
			categoryID int64
			cents      int64
		)
		if err := rows.Scan(&categoryID, &cents); err != nil {
			return nil, fmt.Errorf("scan budget node: %w", err)
		}
		amounts[categoryID] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(amounts) == 0 {
		return nil, fmt.Errorf("account %d (%s): %w", accountID, t, core.ErrBudgetNotFound)
	}

	categories, err := r.CategoriesByType(ctx, t)
	if err != nil {
		return nil, err
	}
	tree, err := core.NewTree(t, categories)
	if err != nil {
		return nil, fmt.Errorf("build %s category tree: %w", t, err)
	}
	return budget.NewTree(accountID, tree, amounts), nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		var (
			tx           core.Transaction
			catID        sql.NullInt64
			catName      sql.NullString
			catQualified sql.NullString
			catIsRoot    sql.NullBool
			catType      sql.NullString
			catParentID  sql.NullInt64
		)
		if err := rows.Scan(
			&tx.ID, &tx.BookingDate, &tx.Amount.Cents, &tx.Description,
			&tx.Counterparty.Name, &tx.Counterparty.Account,
			&tx.IsRecurring, &tx.ManuallyAssigned,
			&tx.BankAccount.ID, &tx.BankAccount.Name, &tx.BankAccount.IBAN,
			&catID, &catName, &catQualified, &catIsRoot, &catType, &catParentID,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if catID.Valid {
			tx.Category = &core.Category{
				ID:            catID.Int64,
				Name:          catName.String,
				QualifiedName: catQualified.String,
				IsRoot:        catIsRoot.Bool,
				Type:          core.TransactionType(catType.String),
				ParentID:      catParentID.Int64,
			}
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
