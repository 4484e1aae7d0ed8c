package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 21000-21999: Admission errors
// 22000-22999: Grading & Infrastructure errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10004
	ServiceUnavailable  ErrorCode = 10005
	Timeout             ErrorCode = 10006

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Admission Errors (21000-21999) ==========

	ProblemNotFound        ErrorCode = 21000
	PayloadTooLarge        ErrorCode = 21001
	LanguageNotSupported   ErrorCode = 21002
	RateLimited            ErrorCode = 21003
	CapacityExceeded       ErrorCode = 21004
	SubmissionNotFound     ErrorCode = 21005
	SubmissionCreateFailed ErrorCode = 21006

	// ========== Grading & Infrastructure Errors (22000-22999) ==========

	GradingSystemError ErrorCode = 22000
	SandboxError       ErrorCode = 22001
	LeaseLost          ErrorCode = 22002
	StorageError       ErrorCode = 22003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	CacheError: "Cache operation failed",

	ValidationFailed: "Validation failed",

	ProblemNotFound:        "Problem not found",
	PayloadTooLarge:        "Source code is too large",
	LanguageNotSupported:   "Programming language not supported",
	RateLimited:            "Submitting too frequently, please wait",
	CapacityExceeded:       "Grading queue is full, please try again later",
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",

	GradingSystemError: "Grading system error",
	SandboxError:       "Sandbox execution failed",
	LeaseLost:          "Grading lease lost",
	StorageError:       "Object storage operation failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ProblemNotFound, c == SubmissionNotFound, c == RecordNotFound:
		return 404
	case c == TooManyRequests, c == RateLimited:
		return 429
	case c == CapacityExceeded, c == ServiceUnavailable:
		return 503
	case c == PayloadTooLarge:
		return 413
	case c == InvalidParams, c == LanguageNotSupported, c >= 10300 && c < 10400:
		return 400
	default:
		return 500
	}
}
