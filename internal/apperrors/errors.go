package apperrors

import "fmt"

// Kind identifies the failure category of an Error.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindNotFound      Kind = "not_found"
	KindBusinessLogic Kind = "business_logic"
	KindInternal      Kind = "internal"
	KindExternalAPI   Kind = "external_api"
)

// Error is the single failure type surfaced to the entry point. Every
// error carries the HTTP status code the response envelope must use and
// a message safe to return to the caller. External API failures
// additionally carry the remote system's status and message for
// diagnostics.
type Error struct {
	Kind    Kind
	Status  int
	Message string

	// Set only when Kind == KindExternalAPI.
	ExternalStatus  int
	ExternalMessage string
}

func (e *Error) Error() string {
	return e.Message
}

// Validation reports a 400 request-validation failure.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Status: 400, Message: fmt.Sprintf(format, args...)}
}

// Auth reports a 401 authentication or token failure.
func Auth(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuth, Status: 401, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a 404 missing-resource failure.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Status: 404, Message: fmt.Sprintf(format, args...)}
}

// BusinessLogic reports a 422 business-rule failure.
func BusinessLogic(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBusinessLogic, Status: 422, Message: fmt.Sprintf(format, args...)}
}

// Internal reports a 500 system failure.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Status: 500, Message: fmt.Sprintf(format, args...)}
}

// Upstream reports a 502 failure reaching or using the external API where
// no remote status is available (transport errors, unparsable outcomes).
func Upstream(format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternalAPI, Status: 502, Message: fmt.Sprintf(format, args...)}
}

// External reports an external API failure with the remote system's own
// status and message. The composite message is formatted here and only
// here; consumers receive it pre-built.
func External(status int, message string, externalStatus int, externalMessage string) *Error {
	detailed := message
	if externalStatus != 0 && externalMessage != "" {
		detailed = fmt.Sprintf("%s (External API: %d - %s)", message, externalStatus, externalMessage)
	}
	return &Error{
		Kind:            KindExternalAPI,
		Status:          status,
		Message:         detailed,
		ExternalStatus:  externalStatus,
		ExternalMessage: externalMessage,
	}
}
