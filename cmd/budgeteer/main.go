package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"budgeteer/internal/analysis"
	"budgeteer/internal/budget"
	"budgeteer/internal/categorize"
	"budgeteer/internal/cli"
	"budgeteer/internal/core"
	"budgeteer/internal/export"
	"budgeteer/internal/export/google"
	"budgeteer/internal/log"
	"budgeteer/internal/period"
	"budgeteer/internal/rules"
	"budgeteer/internal/services"
	"budgeteer/internal/storage"
)

const usage = `Usage: budgeteer <command> [flags]

Commands:
  accounts    add or list bank accounts
  import      import transactions from a CSV file
  categorize  categorize the pending transactions of an account
  category    add or list categories
  rules       attach or remove the rule set of a category
  report      revenue and expenses per period
  details     break one category down into its children
  budget      set budget amounts and track them
  recurring   detect recurring transactions
  export      write the budget report to the configured sheet

Run 'budgeteer <command> -h' for the flags of a command.`

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	registry := categorize.NewRegistry(repo, repo, cfg.EngineCacheTTL)

	ctx := context.Background()

	var exporter export.ReportWriter
	if cfg.ExportEnabled {
		client, err := google.New(ctx, cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
	}

	service := services.NewAssistantService(repo, registry, cli.InitAMQP(logger, cfg), exporter, services.Options{
		CacheSize: cfg.ReportCacheSize,
		CacheTTL:  cfg.ReportCacheTTL,
		BatchSize: cfg.CategorizeBatchSize,
	})
	defer service.Close()

	a := &app{service: service, repo: repo}

	var err error
	switch os.Args[1] {
	case "accounts":
		err = a.accounts(ctx, os.Args[2:])
	case "import":
		err = a.importTransactions(ctx, os.Args[2:])
	case "categorize":
		err = a.categorize(ctx, os.Args[2:])
	case "category":
		err = a.category(ctx, os.Args[2:])
	case "rules":
		err = a.rules(ctx, os.Args[2:])
	case "report":
		err = a.report(ctx, os.Args[2:])
	case "details":
		err = a.details(ctx, os.Args[2:])
	case "budget":
		err = a.budget(ctx, os.Args[2:])
	case "recurring":
		err = a.recurring(ctx, os.Args[2:])
	case "export":
		err = a.export(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type app struct {
	service *services.AssistantService
	repo    *storage.SQLiteRepository
}

// queryFlags registers the shared reporting flags on a flag set. It
// returns the account id flag and a builder that turns the flags into
// a query after parsing.
func queryFlags(fs *flag.FlagSet) (*int64, func() (analysis.Query, error)) {
	accountID := fs.Int64("account", 0, "bank account id")
	shortcut := fs.String("period", "", `date shortcut like "current month" or "previous quarter"`)
	from := fs.String("from", "", "range start (2006-01-02), ignored with -period")
	to := fs.String("to", "", "range end (2006-01-02), ignored with -period")
	grouping := fs.String("grouping", "month", "bucket size: month, quarter or year")
	revenueRec := fs.String("revenue-recurrence", "both", "revenue filter: recurrent, non-recurrent or both")
	expensesRec := fs.String("expenses-recurrence", "both", "expenses filter: recurrent, non-recurrent or both")

	return accountID, func() (analysis.Query, error) {
		q := analysis.Query{AccountID: *accountID}
		if q.AccountID == 0 {
			return q, fmt.Errorf("-account is required")
		}

		var err error
		if q.Grouping, err = parseGrouping(*grouping); err != nil {
			return q, err
		}
		if q.RevenueRecurrence, err = parseRecurrence(*revenueRec); err != nil {
			return q, err
		}
		if q.ExpensesRecurrence, err = parseRecurrence(*expensesRec); err != nil {
			return q, err
		}

		if *shortcut != "" {
			if q.Range, err = period.ResolveShortcut(*shortcut, time.Now()); err != nil {
				return q, err
			}
			return q, nil
		}
		if *from == "" || *to == "" {
			return q, fmt.Errorf("either -period or both -from and -to are required")
		}
		start, err := time.Parse("2006-01-02", *from)
		if err != nil {
			return q, fmt.Errorf("invalid -from: %w", err)
		}
		end, err := time.Parse("2006-01-02", *to)
		if err != nil {
			return q, fmt.Errorf("invalid -to: %w", err)
		}
		q.Range = period.DateRange{Start: start, End: end}.Normalized()
		return q, nil
	}
}

func parseGrouping(s string) (period.Grouping, error) {
	switch strings.ToLower(s) {
	case "month":
		return period.Monthly, nil
	case "quarter":
		return period.Quarterly, nil
	case "year":
		return period.Yearly, nil
	default:
		return "", fmt.Errorf("invalid grouping %q: must be month, quarter or year", s)
	}
}

func parseRecurrence(s string) (analysis.Recurrence, error) {
	switch strings.ToLower(s) {
	case "recurrent":
		return analysis.Recurrent, nil
	case "non-recurrent":
		return analysis.NonRecurrent, nil
	case "both", "":
		return analysis.Both, nil
	default:
		return "", fmt.Errorf("invalid recurrence %q: must be recurrent, non-recurrent or both", s)
	}
}

func parseType(s string) (core.TransactionType, error) {
	switch strings.ToLower(s) {
	case "expenses":
		return core.Expenses, nil
	case "revenue":
		return core.Revenue, nil
	default:
		return "", fmt.Errorf("invalid type %q: must be expenses or revenue", s)
	}
}

// resolveCategory finds a category by qualified name, searching the
// expense taxonomy first.
func (a *app) resolveCategory(ctx context.Context, qualifiedName string) (core.Category, error) {
	for _, t := range []core.TransactionType{core.Expenses, core.Revenue} {
		categories, err := a.repo.CategoriesByType(ctx, t)
		if err != nil {
			return core.Category{}, err
		}
		for _, c := range categories {
			if c.QualifiedName == qualifiedName {
				return c, nil
			}
		}
	}
	return core.Category{}, fmt.Errorf("category %q: %w", qualifiedName, core.ErrCategoryNotFound)
}

func (a *app) accounts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	name := fs.String("name", "", "account name (add)")
	iban := fs.String("iban", "", "account IBAN (add)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name != "" {
		account, err := a.repo.CreateBankAccount(ctx, *name, *iban)
		if err != nil {
			return err
		}
		fmt.Printf("Created account %d (%s)\n", account.ID, account.Name)
		return nil
	}

	accounts, err := a.repo.BankAccounts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIBAN")
	for _, account := range accounts {
		fmt.Fprintf(w, "%d\t%s\t%s\n", account.ID, account.Name, account.IBAN)
	}
	return w.Flush()
}

func (a *app) importTransactions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	accountID := fs.Int64("account", 0, "bank account id")
	file := fs.String("file", "", "CSV file: date,amount,description[,counterparty,counterparty_account]")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == 0 || *file == "" {
		return fmt.Errorf("-account and -file are required")
	}

	txs, err := readTransactionsCSV(*file)
	if err != nil {
		return err
	}
	inserted, err := a.service.ImportTransactions(ctx, *accountID, txs)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d transactions\n", inserted)
	return nil
}

func readTransactionsCSV(path string) ([]core.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	txs := make([]core.Transaction, 0, len(records))
	for i, record := range records {
		if len(record) < 3 {
			return nil, fmt.Errorf("%s line %d: expected at least date, amount and description", path, i+1)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		amount, err := core.ParseMoney(record[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		tx := core.Transaction{
			BookingDate: date,
			Amount:      amount,
			Description: strings.TrimSpace(record[2]),
		}
		if len(record) > 3 {
			tx.Counterparty.Name = strings.TrimSpace(record[3])
		}
		if len(record) > 4 {
			tx.Counterparty.Account = strings.TrimSpace(record[4])
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (a *app) categorize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("categorize", flag.ExitOnError)
	accountID := fs.Int64("account", 0, "bank account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == 0 {
		return fmt.Errorf("-account is required")
	}

	jobID, err := a.service.RequestCategorization(ctx, *accountID)
	if err != nil {
		return err
	}
	fmt.Printf("Categorization job %s\n", jobID)
	return nil
}

func (a *app) category(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("category", flag.ExitOnError)
	typeName := fs.String("type", "expenses", "taxonomy: expenses or revenue")
	parent := fs.String("parent", "", "qualified name of the parent (add)")
	name := fs.String("name", "", "name of the new category (add)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := parseType(*typeName)
	if err != nil {
		return err
	}

	if *name != "" {
		if *parent == "" {
			return fmt.Errorf("-parent is required with -name")
		}
		parentCategory, err := a.resolveCategory(ctx, *parent)
		if err != nil {
			return err
		}
		c, err := a.service.AddCategory(ctx, parentCategory.ID, *name, t)
		if err != nil {
			return err
		}
		fmt.Printf("Created category %d (%s)\n", c.ID, c.QualifiedName)
		return nil
	}

	categories, err := a.repo.CategoriesByType(ctx, t)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tQUALIFIED NAME")
	for _, c := range categories {
		fmt.Fprintf(w, "%d\t%s\n", c.ID, c.QualifiedName)
	}
	return w.Flush()
}

func (a *app) rules(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	category := fs.String("category", "", "qualified name of the category")
	file := fs.String("file", "", "JSON rule set file (omit to remove the rule set)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *category == "" {
		return fmt.Errorf("-category is required")
	}
	c, err := a.resolveCategory(ctx, *category)
	if err != nil {
		return err
	}

	if *file == "" {
		if err := a.repo.DeleteRuleSet(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("Removed rule set of %s\n", c.QualifiedName)
		return nil
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	node, err := rules.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}
	if err := a.service.AttachRuleSet(ctx, c.ID, node); err != nil {
		return err
	}
	fmt.Printf("Attached rule set to %s\n", c.QualifiedName)
	return nil
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	byCategory := fs.Bool("by-category", false, "split the periods by category")
	_, buildQuery := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	q, err := buildQuery()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if *byCategory {
		breakdown, err := a.service.RevenueAndExpensesPerPeriodAndCategory(ctx, q)
		if err != nil {
			return err
		}
		// Outliers within a category's series are marked with *.
		anomalies := make(map[string][]bool, len(breakdown.Categories))
		for _, name := range breakdown.Categories {
			anomalies[name] = analysis.Anomalies(breakdown.AmountSeries(name))
		}
		fmt.Fprint(w, "PERIOD")
		for _, name := range breakdown.Categories {
			fmt.Fprintf(w, "\t%s", name)
		}
		fmt.Fprintln(w)
		for i, p := range breakdown.Periods {
			fmt.Fprint(w, p.Period.Value)
			for _, name := range breakdown.Categories {
				mark := ""
				if anomalies[name][i] {
					mark = "*"
				}
				fmt.Fprintf(w, "\t%.2f%s", p.Amounts[name].Float(), mark)
			}
			fmt.Fprintln(w)
		}
		return nil
	}

	totals, err := a.service.RevenueAndExpensesPerPeriod(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "PERIOD\tREVENUE\tEXPENSES\tNET")
	for _, t := range totals {
		net := t.Revenue.Add(t.Expenses)
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\n",
			t.Period.Value, t.Revenue.Float(), t.Expenses.Float(), net.Float())
	}
	return nil
}

func (a *app) details(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("details", flag.ExitOnError)
	category := fs.String("category", "", "qualified name to expand")
	_, buildQuery := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *category == "" {
		return fmt.Errorf("-category is required")
	}
	q, err := buildQuery()
	if err != nil {
		return err
	}

	details, err := a.service.CategoryDetailsForPeriod(ctx, q, *category)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tAMOUNT\tSHARE")
	for _, share := range details.Shares {
		fmt.Fprintf(w, "%s\t%.2f\t%.1f%%\n", share.Category, share.Amount.Float(), share.Percentage)
	}
	fmt.Fprintf(w, "TOTAL\t%.2f\t\n", details.Total.Float())
	return w.Flush()
}

func (a *app) budget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("budget", flag.ExitOnError)
	category := fs.String("category", "", "qualified name to budget (set)")
	amount := fs.String("amount", "", "budgeted amount like 300.00 (set)")
	accountID, buildQuery := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *category != "" || *amount != "" {
		if *category == "" || *amount == "" {
			return fmt.Errorf("-category and -amount are required together")
		}
		if *accountID == 0 {
			return fmt.Errorf("-account is required")
		}
		c, err := a.resolveCategory(ctx, *category)
		if err != nil {
			return err
		}
		m, err := core.ParseMoney(*amount)
		if err != nil {
			return err
		}
		if err := a.service.SetBudget(ctx, *accountID, c.ID, m.Abs()); err != nil {
			return err
		}
		fmt.Printf("Budgeted %.2f for %s\n", m.Abs().Float(), c.QualifiedName)
		return nil
	}

	q, err := buildQuery()
	if err != nil {
		return err
	}
	report, err := a.service.TrackBudget(ctx, q)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tBUDGETED\tACTUAL\tDIFFERENCE\tUSED")
	printBudgetEntries(w, report.Entries, 0)
	fmt.Fprintf(w, "TOTAL\t%.2f\t%.2f\t%.2f\t\n",
		report.TotalBudgeted.Float(), report.TotalActual.Float(), report.TotalDifference.Float())
	return w.Flush()
}

func printBudgetEntries(w *tabwriter.Writer, entries []budget.Entry, depth int) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s\t%.2f\t%.2f\t%.2f\t%.1f%%\n",
			strings.Repeat("  ", depth), e.Category,
			e.Budgeted.Float(), e.Actual.Float(), e.Difference.Float(), e.PercentageUsed)
		printBudgetEntries(w, e.Children, depth+1)
	}
}

func (a *app) recurring(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recurring", flag.ExitOnError)
	accountID := fs.Int64("account", 0, "bank account id")
	months := fs.Int("months", 6, "how many months to look back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == 0 {
		return fmt.Errorf("-account is required")
	}

	detector := services.NewRecurrenceDetector(a.repo)
	marked, err := detector.DetectAndMark(ctx, *accountID, services.MonthsBack(time.Now(), *months))
	if err != nil {
		return err
	}
	fmt.Printf("Marked %d transactions as recurring\n", marked)
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	title := fs.String("title", "", "report title (defaults to the range)")
	_, buildQuery := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	q, err := buildQuery()
	if err != nil {
		return err
	}
	if *title == "" {
		*title = fmt.Sprintf("Budget %s - %s",
			q.Range.Start.Format("2006-01-02"), q.Range.End.Format("2006-01-02"))
	}

	if err := a.service.ExportBudgetReport(ctx, q, *title); err != nil {
		return err
	}
	fmt.Printf("Exported %q\n", *title)
	return nil
}

