package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through a call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldQueue is the queue a job belongs to
	FieldQueue = "queue"

	// FieldJobID is the queue job ID
	FieldJobID = "job_id"

	// FieldRecordID is the catalog record a job targets
	FieldRecordID = "record_id"

	// FieldTryCount is the job's try count when it was leased
	FieldTryCount = "try_count"
)

// Metric fields, attached per entry for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is a response size in bytes
	FieldSize = "size"

	// FieldReason is a failure reason code
	FieldReason = "reason"

	// FieldConfidence is a match confidence in [0,1]
	FieldConfidence = "confidence"

	// FieldStage is the strategy ladder stage
	FieldStage = "stage"
)
