package model

// FailureReason classifies a failed conversion.
type FailureReason string

// Conversion failure reasons
const (
	ReasonNone            FailureReason = ""
	ReasonTimeout         FailureReason = "TIMEOUT"
	ReasonServerError     FailureReason = "SERVER_ERROR"
	ReasonInvalidResponse FailureReason = "INVALID_RESPONSE"
)

// ConversionOutcome is the result of uploading an artifact to the conversion service.
type ConversionOutcome struct {
	Succeeded  bool
	Payload    []byte // raw response body, only set on success
	Diagnostic string
	Reason     FailureReason
	StatusCode int
}
