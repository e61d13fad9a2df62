package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOwner      = "owner"
	FieldEventID    = "event_id"
	FieldIntentKind = "intent_kind"
	FieldItem       = "item"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentMatcher = "matcher"
	ComponentStats   = "stats"
	ComponentBudget  = "budget"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentIntent  = "intent"
	ComponentExport  = "export"
)
