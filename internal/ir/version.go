package ir

// Version constants for the audit wire format and the tool.
const (
	// RecordVersion is the audit record schema version. Bump it when an
	// existing record field is renamed or removed.
	RecordVersion = "1"

	// ToolVersion is the pipeaudit release version.
	ToolVersion = "0.1.0"
)
