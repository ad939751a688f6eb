package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldQuery          = "query"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldUserAgent      = "user_agent"
	FieldReferer        = "referer"
	FieldSuccess        = "success"
	FieldError          = "error"
	FieldErrorKind      = "error_kind"
	FieldOperation      = "operation"
	FieldEnvelopeID     = "envelope_id"
	FieldEnvelopeName   = "envelope_name"
	FieldFromEnvelopeID = "from_envelope_id"
	FieldToEnvelopeID   = "to_envelope_id"
	FieldAmountCents    = "amount_cents"
	FieldTotalCents     = "total_cents"
	FieldAvailableCents = "available_cents"
	FieldEventType      = "event_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentAMQP      = "amqp"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentConfig    = "config"
)

// Operations defines standard operation names
const (
	OpInitialize = "initialize"
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpTransfer   = "transfer"
	OpPublish    = "publish"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEnvelope adds envelope-related fields
func (f LogFields) WithEnvelope(id uint64, name string, budgetCents int64) LogFields {
	f[FieldEnvelopeID] = id
	f[FieldEnvelopeName] = name
	f[FieldAmountCents] = budgetCents
	return f
}

// WithBudget adds the ledger totals
func (f LogFields) WithBudget(totalCents, availableCents int64) LogFields {
	f[FieldTotalCents] = totalCents
	f[FieldAvailableCents] = availableCents
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
