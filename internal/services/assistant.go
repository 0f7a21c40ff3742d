// Package services orchestrates the domain packages behind the public
// operations: categorization, period reports, budget tracking and
// report export.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/amqp"
	"budgeteer/internal/analysis"
	"budgeteer/internal/budget"
	"budgeteer/internal/cache"
	"budgeteer/internal/categorize"
	"budgeteer/internal/core"
	"budgeteer/internal/export"
	"budgeteer/internal/period"
	"budgeteer/internal/rules"
	"budgeteer/internal/storage"
	"budgeteer/internal/worker"
)

// AssistantService wires storage, the categorization registry, the
// period aggregator and the budget tracker behind one API. Period
// reports are served through a read-through cache invalidated on every
// write that can change them.
type AssistantService struct {
	storage    *storage.SQLiteRepository
	registry   *categorize.Registry
	aggregator *analysis.Aggregator
	tracker    *budget.Tracker
	amqpClient *amqp.Client
	exporter   export.ReportWriter

	perPeriod    *cache.LRUCache[[]analysis.PeriodTotals]
	breakdowns   *cache.LRUCache[analysis.CategoryBreakdown]
	cacheManager *cache.Manager

	batchSize int
}

// Options tunes the service's caches and inline batch size.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	BatchSize int
}

func NewAssistantService(repo *storage.SQLiteRepository, registry *categorize.Registry, amqpClient *amqp.Client, exporter export.ReportWriter, opts Options) *AssistantService {
	if opts.CacheSize < 1 {
		opts.CacheSize = 128
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 500
	}
	aggregator := analysis.NewAggregator(repo)
	s := &AssistantService{
		storage:    repo,
		registry:   registry,
		aggregator: aggregator,
		tracker:    budget.NewTracker(aggregator),
		amqpClient: amqpClient,
		exporter:   exporter,
		perPeriod:  cache.NewLRUCache[[]analysis.PeriodTotals](opts.CacheSize, opts.CacheTTL),
		breakdowns: cache.NewLRUCache[analysis.CategoryBreakdown](opts.CacheSize, opts.CacheTTL),
		batchSize:  opts.BatchSize,
	}
	if opts.CacheTTL > 0 {
		s.cacheManager = cache.NewManager()
		s.cacheManager.Register(s.perPeriod)
		s.cacheManager.Register(s.breakdowns)
		s.cacheManager.StartCleanup(opts.CacheTTL)
	}
	return s
}

// ImportTransactions stores a batch of imported transactions for one
// account and requests their categorization.
func (s *AssistantService) ImportTransactions(ctx context.Context, accountID int64, txs []core.Transaction) (int, error) {
	inserted := 0
	for _, tx := range txs {
		tx.BankAccount.ID = accountID
		if _, err := s.storage.InsertTransaction(ctx, tx); err != nil {
			return inserted, fmt.Errorf("import transaction: %w", err)
		}
		inserted++
	}
	s.invalidateReports()

	if inserted > 0 {
		if _, err := s.RequestCategorization(ctx, accountID); err != nil {
			slog.WarnContext(ctx, "Categorization request after import failed",
				"account_id", accountID, "error", err)
		}
	}
	return inserted, nil
}

// Categorize assigns the best-matching category to one transaction
// without persisting anything.
func (s *AssistantService) Categorize(ctx context.Context, tx *core.Transaction) (*core.Category, error) {
	engine, err := s.registry.EngineForTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return engine.Categorize(tx)
}

// RequestCategorization queues a categorization job for the account.
// Without a broker (or when publishing fails) the batch runs inline, so
// the operation degrades to slower rather than lost.
func (s *AssistantService) RequestCategorization(ctx context.Context, accountID int64) (uuid.UUID, error) {
	if s.amqpClient != nil {
		jobID, err := s.amqpClient.PublishCategorizeJob(ctx, accountID)
		if err == nil {
			return jobID, nil
		}
		slog.WarnContext(ctx, "Publish failed, categorizing inline",
			"account_id", accountID, "error", err)
	}

	jobID := uuid.New()
	w := worker.NewCategorizeWorker(s.storage, s.registry, s.batchSize, nil)
	result, err := w.CategorizeAccount(ctx, accountID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inline categorization: %w", err)
	}
	s.invalidateReports()

	slog.InfoContext(ctx, "Inline categorization completed",
		"job_id", jobID,
		"account_id", accountID,
		"matched", result.Matched,
		"unmatched", result.Unmatched,
		"skipped", result.Skipped)
	return jobID, nil
}

// AddCategory creates a child category and rebuilds the engines.
func (s *AssistantService) AddCategory(ctx context.Context, parentID int64, name string, t core.TransactionType) (core.Category, error) {
	c, err := s.storage.CreateCategory(ctx, parentID, name, t)
	if err != nil {
		return core.Category{}, err
	}
	s.registry.Invalidate()
	return c, nil
}

// AttachRuleSet stores the rule set of a category and rebuilds the
// engines so the next categorization pass sees it. Transactions parked
// on the NO CATEGORY sentinel are released back into the uncategorized
// pool so the new rules get a shot at them.
func (s *AssistantService) AttachRuleSet(ctx context.Context, categoryID int64, node rules.Node) error {
	if err := s.storage.SaveRuleSet(ctx, categoryID, node); err != nil {
		return err
	}
	s.registry.Invalidate()

	released, err := s.storage.ReleaseNoCategoryAssignments(ctx)
	if err != nil {
		return fmt.Errorf("release uncategorized transactions: %w", err)
	}
	if released > 0 {
		s.invalidateReports()
		slog.InfoContext(ctx, "Released transactions for recategorization",
			"category_id", categoryID, "released", released)
	}
	return nil
}

// RevenueAndExpensesPerPeriod aggregates revenue/expense totals per
// period for the query, served through the report cache.
func (s *AssistantService) RevenueAndExpensesPerPeriod(ctx context.Context, q analysis.Query) ([]analysis.PeriodTotals, error) {
	key := queryKey(q)
	if totals, ok := s.perPeriod.Get(key); ok {
		return totals, nil
	}
	totals, err := s.aggregator.PerPeriod(ctx, q)
	if err != nil {
		return nil, err
	}
	s.perPeriod.Set(key, totals)
	return totals, nil
}

// RevenueAndExpensesPerPeriodAndCategory returns the per-period
// per-category distribution for the query, served through the cache.
func (s *AssistantService) RevenueAndExpensesPerPeriodAndCategory(ctx context.Context, q analysis.Query) (analysis.CategoryBreakdown, error) {
	key := queryKey(q)
	if breakdown, ok := s.breakdowns.Get(key); ok {
		return breakdown, nil
	}
	breakdown, err := s.aggregator.PerPeriodAndCategory(ctx, q)
	if err != nil {
		return analysis.CategoryBreakdown{}, err
	}
	s.breakdowns.Set(key, breakdown)
	return breakdown, nil
}

// TrackBudget compares the account's expense budget against actuals in
// the query scope.
func (s *AssistantService) TrackBudget(ctx context.Context, q analysis.Query) (budget.Report, error) {
	tree, err := s.storage.BudgetTreeForAccount(ctx, q.AccountID, core.Expenses)
	if err != nil {
		return budget.Report{}, err
	}
	return s.tracker.Track(ctx, q, tree)
}

// SetBudget sets the budgeted amount of one category for an account.
func (s *AssistantService) SetBudget(ctx context.Context, accountID, categoryID int64, amount core.Money) error {
	return s.storage.SetBudgetAmount(ctx, accountID, categoryID, amount)
}

// CategoryDetailsForPeriod expands one category into its descendants'
// shares within the query scope. The qualified name is looked up in the
// expense taxonomy first, then in revenue.
func (s *AssistantService) CategoryDetailsForPeriod(ctx context.Context, q analysis.Query, qualifiedName string) (analysis.CategoryDetails, error) {
	expenseTree, err := s.categoryTree(ctx, core.Expenses)
	if err != nil {
		return analysis.CategoryDetails{}, err
	}
	details, expenseErr := s.aggregator.CategoryDetails(ctx, q, expenseTree, qualifiedName)
	if expenseErr == nil {
		return details, nil
	}
	if !errors.Is(expenseErr, core.ErrCategoryNotFound) {
		return analysis.CategoryDetails{}, expenseErr
	}

	revenueTree, err := s.categoryTree(ctx, core.Revenue)
	if err != nil {
		return analysis.CategoryDetails{}, err
	}
	details, err = s.aggregator.CategoryDetails(ctx, q, revenueTree, qualifiedName)
	if err == nil {
		return details, nil
	}
	// Surface the expense-side miss; its suggestion covers the larger tree.
	return analysis.CategoryDetails{}, expenseErr
}

// ResolveDateShortcut turns a named shortcut like "current month" into
// a date range relative to now.
func (s *AssistantService) ResolveDateShortcut(name string, now time.Time) (period.DateRange, error) {
	return period.ResolveShortcut(name, now)
}

// ExportBudgetReport renders the budget report for the query and writes
// it to the configured sink.
func (s *AssistantService) ExportBudgetReport(ctx context.Context, q analysis.Query, title string) error {
	if s.exporter == nil {
		return errors.New("no report exporter configured")
	}
	report, err := s.TrackBudget(ctx, q)
	if err != nil {
		return err
	}
	if err := s.exporter.WriteReport(ctx, export.FromBudget(title, report)); err != nil {
		return fmt.Errorf("export budget report: %w", err)
	}
	return nil
}

// Close stops the cache cleanup and closes storage and the AMQP
// connection.
func (s *AssistantService) Close() error {
	var errs []error

	if s.cacheManager != nil {
		s.cacheManager.Stop()
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close assistant service: %v", errs)
	}
	return nil
}

func (s *AssistantService) categoryTree(ctx context.Context, t core.TransactionType) (*core.Tree, error) {
	categories, err := s.storage.CategoriesByType(ctx, t)
	if err != nil {
		return nil, err
	}
	tree, err := core.NewTree(t, categories)
	if err != nil {
		return nil, fmt.Errorf("build %s category tree: %w", t, err)
	}
	return tree, nil
}

func (s *AssistantService) invalidateReports() {
	s.perPeriod.Purge()
	s.breakdowns.Purge()
}

func queryKey(q analysis.Query) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		q.AccountID,
		q.Range.Start.UTC().Format(time.RFC3339),
		q.Range.End.UTC().Format(time.RFC3339),
		q.Grouping,
		q.RevenueRecurrence,
		q.ExpensesRecurrence)
}
