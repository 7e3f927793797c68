package models

// LogRecord is a log entry normalised to ECS-style fields by the log fetcher.
// Every field except Timestamp and Message may be empty.
type LogRecord struct {
	Timestamp       string         `json:"timestamp"`
	Message         string         `json:"message"`
	LogLevel        string         `json:"log_level,omitempty"`
	ServiceName     string         `json:"service_name,omitempty"`
	HostName        string         `json:"host_name,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ErrorStackTrace string         `json:"error_stack_trace,omitempty"`
	ErrorType       string         `json:"error_type,omitempty"`
	EventDataset    string         `json:"event_dataset,omitempty"`
	EventModule     string         `json:"event_module,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// ClassifiedLog is a LogRecord annotated by the classifier. It is never mutated after creation.
type ClassifiedLog struct {
	LogRecord
	Category      Category      `json:"category"`
	Severity      Severity      `json:"severity"`
	ExtractedInfo ExtractedInfo `json:"extracted_info"`
	ClassifiedAt  string        `json:"classified_at"`
}

// ExtractedInfo holds entities pulled out of a log message, in extraction order.
type ExtractedInfo struct {
	ErrorCodes  []string `json:"error_codes"`
	IPAddresses []string `json:"ip_addresses"`
	URLs        []string `json:"urls"`
	FilePaths   []string `json:"file_paths"`
}

// Category enumerates error classes.
type Category string

const (
	CategoryApplication    Category = "APPLICATION"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategorySecurity       Category = "SECURITY"
	CategoryPerformance    Category = "PERFORMANCE"
	CategoryUnknown        Category = "UNKNOWN"
)

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities so that CRITICAL > HIGH > MEDIUM > LOW. Unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
