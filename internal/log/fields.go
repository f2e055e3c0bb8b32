package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldOperation      = "operation"
	FieldError          = "error"
	FieldUserID         = "user_id"
	FieldExpenseID      = "expense_id"
	FieldSubscriptionID = "subscription_id"
	FieldClusterKey     = "cluster_key"
	FieldAmountCents    = "amount_cents"
	FieldScore          = "score"
	FieldYear           = "year"
	FieldMonth          = "month"
	FieldDuration       = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentDetector = "detector"
	ComponentLinker   = "linker"
	ComponentScorer   = "scorer"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpDetect   = "detect"
	OpLink     = "link"
	OpScore    = "score"
	OpRegister = "register"
	OpUpsert   = "upsert"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
