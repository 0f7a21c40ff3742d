// Package worker consumes categorization jobs: it loads an account's
// pending transactions, runs them through the rule engines and falls
// back to the NO CATEGORY sentinel for whatever no rule matched.
package worker

import (
	"context"
	"fmt"

	"budgeteer/internal/amqp"
	"budgeteer/internal/categorize"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
)

// TransactionStore is the storage surface the worker needs: pending
// work per account, the account list for the startup sweep, and
// category persistence.
type TransactionStore interface {
	UncategorizedTransactions(ctx context.Context, accountID int64, limit int) ([]*core.Transaction, error)
	BankAccounts(ctx context.Context) ([]core.BankAccount, error)
	categorize.CategorySaver
}

// CategorizeWorker processes categorize job messages from AMQP.
type CategorizeWorker struct {
	store     TransactionStore
	registry  *categorize.Registry
	batchSize int
	logger    *log.Logger
}

func NewCategorizeWorker(store TransactionStore, registry *categorize.Registry, batchSize int, logger *log.Logger) *CategorizeWorker {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentWorker})
	}
	return &CategorizeWorker{
		store:     store,
		registry:  registry,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleJobMessage processes a single categorize job from AMQP.
func (w *CategorizeWorker) HandleJobMessage(ctx context.Context, msg *amqp.CategorizeJobMessage) error {
	w.logger.InfoContext(ctx, "Processing categorize job",
		log.FieldJobID, msg.JobID,
		log.FieldAccountID, msg.AccountID)

	result, err := w.CategorizeAccount(ctx, msg.AccountID)
	if err != nil {
		return fmt.Errorf("categorize account %d: %w", msg.AccountID, err)
	}

	w.logger.InfoContext(ctx, "Categorize job completed",
		log.FieldJobID, msg.JobID,
		log.FieldAccountID, msg.AccountID,
		log.FieldMatched, result.Matched,
		log.FieldUnmatched, result.Unmatched,
		log.FieldSkipped, result.Skipped)
	return nil
}

// CategorizeAccount runs one categorization pass over the account's
// pending transactions. Unmatched transactions get the NO CATEGORY
// sentinel so the pass never picks them up again; attaching a rule set
// releases them back into the pool for the next pass.
func (w *CategorizeWorker) CategorizeAccount(ctx context.Context, accountID int64) (categorize.BatchResult, error) {
	var total categorize.BatchResult

	txs, err := w.store.UncategorizedTransactions(ctx, accountID, w.batchSize)
	if err != nil {
		return total, fmt.Errorf("load pending transactions: %w", err)
	}
	if len(txs) == 0 {
		return total, nil
	}

	// One engine per transaction type; split the batch accordingly.
	byType := make(map[core.TransactionType][]*core.Transaction, 2)
	for _, tx := range txs {
		byType[tx.Type()] = append(byType[tx.Type()], tx)
	}

	for typ, group := range byType {
		engine, err := w.registry.EngineFor(ctx, typ)
		if err != nil {
			return total, fmt.Errorf("engine for %s: %w", typ, err)
		}

		result := engine.CategorizeBatch(ctx, group, w.store)
		total.Matched += result.Matched
		total.Unmatched += result.Unmatched
		total.Skipped += result.Skipped

		for _, tx := range group {
			if tx.Category != nil || tx.ManuallyAssigned {
				continue
			}
			if err := w.store.SaveTransactionCategory(ctx, tx.ID, core.NoCategoryID); err != nil {
				w.logger.ErrorContext(ctx, "Failed to assign fallback category",
					log.FieldTransactionID, tx.ID, log.FieldError, err)
				continue
			}
			sentinel := core.NoCategory(typ)
			tx.Category = &sentinel
		}
	}

	return total, nil
}

// StartupCheck sweeps every account for pending transactions. It
// recovers work whose job messages were lost while the worker was down.
func (w *CategorizeWorker) StartupCheck(ctx context.Context) error {
	accounts, err := w.store.BankAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts for startup check: %w", err)
	}

	var total categorize.BatchResult
	for _, account := range accounts {
		result, err := w.CategorizeAccount(ctx, account.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Startup categorization failed for account",
				log.FieldAccountID, account.ID, log.FieldError, err)
			continue
		}
		total.Matched += result.Matched
		total.Unmatched += result.Unmatched
		total.Skipped += result.Skipped
	}

	w.logger.InfoContext(ctx, "Startup check completed",
		"accounts", len(accounts),
		log.FieldMatched, total.Matched,
		log.FieldUnmatched, total.Unmatched,
		log.FieldSkipped, total.Skipped)
	return nil
}
