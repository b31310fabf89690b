package log

// Attribute keys shared across the binaries. Using the constants keeps
// log queries stable when call sites move around.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldEntity     = "entity"
	FieldVerb       = "verb"
)

// Component names, one per subsystem that emits logs.
const (
	ComponentApp     = "haybase"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentWorker  = "worker"
	ComponentAMQP    = "amqp"
	ComponentBackend = "backend"
)

// LogFields accumulates slog attributes for structured events.
type LogFields struct {
	fields []any
}

// NewFields creates a new LogFields builder.
func NewFields() *LogFields {
	return &LogFields{fields: make([]any, 0, 16)}
}

// WithComponent adds the component field.
func (f *LogFields) WithComponent(component string) *LogFields {
	f.fields = append(f.fields, FieldComponent, component)
	return f
}

// WithRequestID adds the request correlation id.
func (f *LogFields) WithRequestID(requestID string) *LogFields {
	if requestID != "" {
		f.fields = append(f.fields, FieldRequestID, requestID)
	}
	return f
}

// WithClientIP adds the client IP field.
func (f *LogFields) WithClientIP(ip string) *LogFields {
	if ip != "" {
		f.fields = append(f.fields, FieldClientIP, ip)
	}
	return f
}

// WithUser adds the acting user's id.
func (f *LogFields) WithUser(userID string) *LogFields {
	if userID != "" {
		f.fields = append(f.fields, FieldUserID, userID)
	}
	return f
}

// WithMutation adds the entity and verb of a write operation.
func (f *LogFields) WithMutation(entity, verb string) *LogFields {
	f.fields = append(f.fields, FieldEntity, entity, FieldVerb, verb)
	return f
}

// WithHTTPRequest adds request fields.
func (f *LogFields) WithHTTPRequest(method, path, query string) *LogFields {
	f.fields = append(f.fields, FieldMethod, method, FieldPath, path)
	if query != "" {
		f.fields = append(f.fields, FieldQuery, query)
	}
	return f
}

// WithHTTPResponse adds response fields.
func (f *LogFields) WithHTTPResponse(statusCode int, durationMs int64) *LogFields {
	f.fields = append(f.fields,
		FieldStatusCode, statusCode,
		FieldDuration, durationMs,
		FieldSuccess, statusCode < 400)
	return f
}

// ToSlice returns the accumulated fields for passing to slog.
func (f *LogFields) ToSlice() []any {
	return f.fields
}
