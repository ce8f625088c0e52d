package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines the broad categories every service error falls into.
type ErrorType string

const (
	ErrorTypeInvalidArgument ErrorType = "INVALID_ARGUMENT"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeConflict        ErrorType = "CONFLICT"
	ErrorTypePrecondition    ErrorType = "PRECONDITION_FAILED"
	ErrorTypeAccessDenied    ErrorType = "ACCESS_DENIED"
	ErrorTypeInternal        ErrorType = "INTERNAL"
)

// AppError is the typed error carried from the engines up to the protocol
// layers. Code is the wire-level error code (S3 or DynamoDB taxonomy);
// Resource optionally names the bucket/key/table the error refers to.
type AppError struct {
	Type     ErrorType
	Code     string
	Message  string
	Resource string
	Err      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithResource returns a copy of the error annotated with the resource name.
func (e *AppError) WithResource(resource string) *AppError {
	clone := *e
	clone.Resource = resource
	return &clone
}

// New creates an AppError with the given type, wire code and message.
func New(t ErrorType, code, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, code, format string, args ...any) *AppError {
	return &AppError{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an internal AppError wrapping an underlying cause.
func Wrap(code, message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Code: code, Message: message, Err: err}
}

// As extracts an *AppError from an error chain, if present.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the wire code of an error, or "InternalError" for untyped errors.
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "InternalError"
}

// IsCode reports whether the error carries the given wire code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// statusByCode maps wire codes to HTTP statuses; an entry takes precedence over the type default.
var statusByCode = map[string]int{
	// S3
	"NoSuchBucket":                 http.StatusNotFound,
	"NoSuchKey":                    http.StatusNotFound,
	"NoSuchUpload":                 http.StatusNotFound,
	"NoSuchVersion":                http.StatusNotFound,
	"NoSuchCORSConfiguration":      http.StatusNotFound,
	"NoSuchLifecycleConfiguration": http.StatusNotFound,
	"NoSuchTagSet":                 http.StatusNotFound,
	"NoSuchBucketPolicy":           http.StatusNotFound,
	"NoSuchWebsiteConfiguration":   http.StatusNotFound,
	"ServerSideEncryptionConfigurationNotFoundError": http.StatusNotFound,
	"ObjectLockConfigurationNotFoundError":           http.StatusNotFound,

	"BucketAlreadyExists":     http.StatusConflict,
	"BucketAlreadyOwnedByYou": http.StatusConflict,
	"BucketNotEmpty":          http.StatusConflict,
	"OperationAborted":        http.StatusConflict,

	"InvalidBucketName":    http.StatusBadRequest,
	"InvalidArgument":      http.StatusBadRequest,
	"InvalidPart":          http.StatusBadRequest,
	"InvalidPartOrder":     http.StatusBadRequest,
	"InvalidTag":           http.StatusBadRequest,
	"InvalidDigest":        http.StatusBadRequest,
	"BadDigest":            http.StatusBadRequest,
	"KeyTooLongError":      http.StatusBadRequest,
	"EntityTooLarge":       http.StatusBadRequest,
	"EntityTooSmall":       http.StatusBadRequest,
	"MalformedXML":         http.StatusBadRequest,
	"MalformedPOSTRequest": http.StatusBadRequest,
	"IllegalVersioningConfigurationException": http.StatusBadRequest,
	"InvalidRange": http.StatusRequestedRangeNotSatisfiable,

	"AccessDenied":          http.StatusForbidden,
	"SignatureDoesNotMatch": http.StatusForbidden,
	"RequestTimeTooSkewed":  http.StatusForbidden,
	"AccessKeyNotFound":     http.StatusForbidden,
	"InvalidAccessKeyId":    http.StatusForbidden,
	"RequestExpired":        http.StatusForbidden,
	"InvalidObjectState":    http.StatusForbidden,

	"PreconditionFailed": http.StatusPreconditionFailed,
	"NotModified":        http.StatusNotModified,
	"MethodNotAllowed":   http.StatusMethodNotAllowed,
	"NotImplemented":     http.StatusNotImplemented,
	"InternalError":      http.StatusInternalServerError,

	// DynamoDB
	"ResourceInUseException":                 http.StatusBadRequest,
	"ResourceNotFoundException":              http.StatusBadRequest,
	"ConditionalCheckFailedException":        http.StatusBadRequest,
	"ValidationException":                    http.StatusBadRequest,
	"SerializationException":                 http.StatusBadRequest,
	"ProvisionedThroughputExceededException": http.StatusBadRequest,
	"TransactionCanceledException":           http.StatusBadRequest,
	"UnrecognizedClientException":            http.StatusBadRequest,
	"MissingAction":                          http.StatusBadRequest,
	"InternalServerError":                    http.StatusInternalServerError,
}

// HTTPStatus resolves the HTTP status for an error: explicit per-code mapping
// first, then the type default, 500 for anything untyped.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if status, found := statusByCode[appErr.Code]; found {
		return status
	}
	switch appErr.Type {
	case ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypePrecondition:
		return http.StatusPreconditionFailed
	case ErrorTypeAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
