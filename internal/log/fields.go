package log

// Common field names for structured logging.
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldQualifiedName = "qualified_name"
	FieldPeriod        = "period"
	FieldGrouping      = "grouping"
	FieldJobID         = "job_id"
	FieldMatched       = "matched"
	FieldUnmatched     = "unmatched"
	FieldSkipped       = "skipped"
	FieldAmountCents   = "amount_cents"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names.
const (
	ComponentApp        = "app"
	ComponentCategorize = "categorize"
	ComponentAnalysis   = "analysis"
	ComponentBudget     = "budget"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentExport     = "export"
	ComponentCache      = "cache"
)

// Operations defines standard operation names.
const (
	OpCategorize = "categorize"
	OpAggregate  = "aggregate"
	OpTrack      = "track"
	OpImport     = "import"
	OpExport     = "export"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
