// Package errors provides the capture pipeline's error taxonomy.
// Every failure surfaced to the user carries one of the Codes below.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to gRPC statuses.
const Domain = "textcam"

// Code identifies a failure kind.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	Unavailable
	Timeout
	PermissionDenied
	DeviceUnavailable
	EngineNotReady
	EngineInitFailed
	RecognitionFailed
	CaptureInProgress
	NotFound
)

var codeNames = [...]string{
	Unknown:           "UNKNOWN",
	Internal:          "INTERNAL",
	InvalidArgument:   "INVALID_ARGUMENT",
	Unavailable:       "UNAVAILABLE",
	Timeout:           "TIMEOUT",
	PermissionDenied:  "PERMISSION_DENIED",
	DeviceUnavailable: "DEVICE_UNAVAILABLE",
	EngineNotReady:    "ENGINE_NOT_READY",
	EngineInitFailed:  "ENGINE_INIT_FAILED",
	RecognitionFailed: "RECOGNITION_FAILED",
	CaptureInProgress: "CAPTURE_IN_PROGRESS",
	NotFound:          "NOT_FOUND",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[Unknown]
	}
	return codeNames[c]
}

// ParseCode is the inverse of Code.String. Unrecognized names map to Unknown.
func ParseCode(s string) Code {
	for i, name := range codeNames {
		if name == s {
			return Code(i)
		}
	}
	return Unknown
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:           codes.Unknown,
	Internal:          codes.Internal,
	InvalidArgument:   codes.InvalidArgument,
	Unavailable:       codes.Unavailable,
	Timeout:           codes.DeadlineExceeded,
	PermissionDenied:  codes.PermissionDenied,
	DeviceUnavailable: codes.Unavailable,
	EngineNotReady:    codes.FailedPrecondition,
	EngineInitFailed:  codes.Unavailable,
	RecognitionFailed: codes.Internal,
	CaptureInProgress: codes.Aborted,
	NotFound:          codes.NotFound,
}

// httpCodeMap maps error codes to HTTP status codes for the control API.
var httpCodeMap = map[Code]int{
	Unknown:           http.StatusInternalServerError,
	Internal:          http.StatusInternalServerError,
	InvalidArgument:   http.StatusBadRequest,
	Unavailable:       http.StatusServiceUnavailable,
	Timeout:           http.StatusGatewayTimeout,
	PermissionDenied:  http.StatusForbidden,
	DeviceUnavailable: http.StatusServiceUnavailable,
	EngineNotReady:    http.StatusServiceUnavailable,
	EngineInitFailed:  http.StatusServiceUnavailable,
	RecognitionFailed: http.StatusBadGateway,
	CaptureInProgress: http.StatusConflict,
	NotFound:          http.StatusNotFound,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus returns the HTTP status used by the control API.
func (e *AppError) HTTPStatus() int {
	if c, ok := httpCodeMap[e.Code]; ok {
		return c
	}
	return http.StatusInternalServerError
}

// ToProto converts to an ErrorInfo detail.
func (e *AppError) ToProto() *errdetails.ErrorInfo {
	info := &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: Domain}
	if len(e.Metadata) > 0 {
		info.Metadata = e.Metadata
	}
	return info
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Message)
	if withDetail, err := st.WithDetails(e.ToProto()); err == nil {
		return withDetail
	}
	return st
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// FromGRPCError extracts an AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.Domain == Domain {
			return &AppError{
				Code:     ParseCode(info.Reason),
				Message:  st.Message(),
				Metadata: info.Metadata,
				Cause:    err,
			}
		}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to error codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded, codes.Canceled:
		return Timeout
	case codes.PermissionDenied, codes.Unauthenticated:
		return PermissionDenied
	case codes.FailedPrecondition:
		return EngineNotReady
	case codes.Aborted:
		return CaptureInProgress
	case codes.NotFound:
		return NotFound
	case codes.Internal:
		return Internal
	default:
		return Unknown
	}
}

// CodeOf returns the code of the first AppError in err's chain, or Unknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// As reports whether err's chain contains an AppError and returns it.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}
