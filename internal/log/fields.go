package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldSessionID  = "session_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldPhase      = "phase"
	FieldDocumentID = "document_id"
	FieldRegion     = "region"
	FieldEntryID    = "entry_id"
	FieldEventID    = "event_id"
	FieldMode       = "allocation_mode"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentSession   = "session"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
)

// Operation names.
const (
	OpList     = "list"
	OpRead     = "read"
	OpAllocate = "allocate"
	OpAppend   = "append"
	OpSubmit   = "submit"
	OpSignIn   = "sign_in"
	OpSignOut  = "sign_out"
	OpPublish  = "publish"
	OpRecord   = "record"
	OpRender   = "render"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Fields is a small builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithRequestID(requestID string) Fields {
	f[FieldRequestID] = requestID
	return f
}

func (f Fields) WithClientIP(ip string) Fields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text when err is non-nil.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithTarget adds the document and region a ledger operation acts on.
func (f Fields) WithTarget(documentID, region string) Fields {
	f[FieldDocumentID] = documentID
	f[FieldRegion] = region
	return f
}

func (f Fields) WithEntryID(id int) Fields {
	f[FieldEntryID] = id
	return f
}

func (f Fields) WithHTTPRequest(method, path string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
