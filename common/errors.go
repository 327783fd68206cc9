package common

import (
	"errors"
	"fmt"
	"strings"
)

//
// Base Types
//

type BaseError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"cause"`
	Details map[string]interface{} `json:"details"`
}

type ErrorCode string

type StandardError interface {
	error
	Base() *BaseError
	CodeChain() string
	DeepestMessage() string
	GetCause() error
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

func (e *BaseError) Base() *BaseError {
	return e
}

func (e *BaseError) GetCause() error {
	return e.Cause
}

func (e *BaseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s -> %s", e.Code, e.Message, e.Cause.Error())
}

func (e *BaseError) CodeChain() string {
	if e.Cause != nil {
		if be, ok := e.Cause.(StandardError); ok {
			return fmt.Sprintf("%s <- %s", e.Code, be.CodeChain())
		}
	}

	return string(e.Code)
}

func (e *BaseError) DeepestMessage() string {
	if e.Cause != nil {
		if be, ok := e.Cause.(StandardError); ok {
			return be.DeepestMessage()
		}
		return e.Cause.Error()
	}

	return e.Message
}

// HasErrorCode walks the cause chain and reports whether any error in it carries one of the codes.
func HasErrorCode(err error, codes ...ErrorCode) bool {
	for err != nil {
		if be, ok := err.(StandardError); ok {
			for _, code := range codes {
				if be.Base().Code == code {
					return true
				}
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

func ErrorSummary(err interface{}) string {
	if err == nil {
		return ""
	}
	e, ok := err.(error)
	if !ok {
		return fmt.Sprintf("%v", err)
	}
	if se, ok := e.(StandardError); ok {
		return fmt.Sprintf("%s: %s", se.CodeChain(), se.DeepestMessage())
	}
	s := e.Error()
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return strings.TrimSpace(s)
}

//
// Error channels
//

type ErrorChannel string

const (
	// The ledger network received the operation and rejected it for a business reason.
	ErrorChannelDomain ErrorChannel = "domain"
	// The request could not be built, delivered or understood.
	ErrorChannelTransport ErrorChannel = "transport"
)

// ClassifiedError is implemented only by ErrDomainRejection and ErrTransportFailure.
type ClassifiedError interface {
	StandardError
	Channel() ErrorChannel
}

// ClassifyError finds the classified error in err's chain, if any.
func ClassifyError(err error) (ClassifiedError, bool) {
	var dr *ErrDomainRejection
	if errors.As(err, &dr) {
		return dr, true
	}
	var tf *ErrTransportFailure
	if errors.As(err, &tf) {
		return tf, true
	}
	return nil, false
}

// IsDomainStatus reports whether err is a domain rejection with one of the given statuses.
// A transport failure never matches, whatever its code.
func IsDomainStatus(err error, statuses ...string) bool {
	var dr *ErrDomainRejection
	if !errors.As(err, &dr) {
		return false
	}
	for _, s := range statuses {
		if dr.Status() == s {
			return true
		}
	}
	return false
}

// IsTransportCode reports whether err is a transport failure with one of the given codes.
func IsTransportCode(err error, codes ...JsonRpcErrorNumber) bool {
	var tf *ErrTransportFailure
	if !errors.As(err, &tf) {
		return false
	}
	for _, c := range codes {
		if tf.TransportCode() == c {
			return true
		}
	}
	return false
}

const ErrCodeDomainRejection ErrorCode = "ErrDomainRejection"

type ErrDomainRejection struct {
	BaseError
	status string
}

var NewErrDomainRejection = func(status string, description string, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["status"] = status
	return &ErrDomainRejection{
		BaseError: BaseError{
			Code:    ErrCodeDomainRejection,
			Message: description,
			Details: details,
		},
		status: status,
	}
}

func (e *ErrDomainRejection) Channel() ErrorChannel { return ErrorChannelDomain }

// Status is the network's own rejection reason, e.g. INVALID_SIGNATURE.
func (e *ErrDomainRejection) Status() string { return e.status }

func (e *ErrDomainRejection) Error() string {
	return fmt.Sprintf("%s: %s (status %s)", e.Code, e.Message, e.status)
}

const ErrCodeTransportFailure ErrorCode = "ErrTransportFailure"

type ErrTransportFailure struct {
	BaseError
	code JsonRpcErrorNumber
}

var NewErrTransportFailure = func(code JsonRpcErrorNumber, message string, cause error, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["transportCode"] = int(code)
	return &ErrTransportFailure{
		BaseError: BaseError{
			Code:    ErrCodeTransportFailure,
			Message: message,
			Cause:   cause,
			Details: details,
		},
		code: code,
	}
}

func (e *ErrTransportFailure) Channel() ErrorChannel { return ErrorChannelTransport }

func (e *ErrTransportFailure) TransportCode() JsonRpcErrorNumber { return e.code }

func (e *ErrTransportFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (code %d) -> %s", e.Code, e.Message, e.code, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s (code %d)", e.Code, e.Message, e.code)
}

//
// Harness errors
//

const ErrCodeEntityNotFound ErrorCode = "ErrEntityNotFound"

type ErrEntityNotFound struct{ BaseError }

var NewErrEntityNotFound = func(oracle string, ref EntityRef, cause error) error {
	return &ErrEntityNotFound{
		BaseError{
			Code:    ErrCodeEntityNotFound,
			Message: fmt.Sprintf("%s not found on %s oracle", ref, oracle),
			Cause:   cause,
			Details: map[string]interface{}{
				"oracle": oracle,
				"kind":   string(ref.Kind),
				"id":     ref.Id.String(),
			},
		},
	}
}

func IsNotFound(err error) bool {
	return HasErrorCode(err, ErrCodeEntityNotFound)
}

const ErrCodeHttpStatus ErrorCode = "ErrHttpStatus"

type ErrHttpStatus struct {
	BaseError
	statusCode int
}

var NewErrHttpStatus = func(url string, statusCode int, body string) error {
	return &ErrHttpStatus{
		BaseError: BaseError{
			Code:    ErrCodeHttpStatus,
			Message: fmt.Sprintf("unexpected http status %d", statusCode),
			Details: map[string]interface{}{
				"url":  url,
				"body": body,
			},
		},
		statusCode: statusCode,
	}
}

func (e *ErrHttpStatus) StatusCode() int { return e.statusCode }

const ErrCodeSessionClosed ErrorCode = "ErrSessionClosed"

type ErrSessionClosed struct{ BaseError }

var NewErrSessionClosed = func(sessionId string) error {
	return &ErrSessionClosed{
		BaseError{
			Code:    ErrCodeSessionClosed,
			Message: "session is closed or superseded by a newer session",
			Details: map[string]interface{}{
				"sessionId": sessionId,
			},
		},
	}
}

const ErrCodeInvalidConfig ErrorCode = "ErrInvalidConfig"

type ErrInvalidConfig struct{ BaseError }

var NewErrInvalidConfig = func(field string, cause error) error {
	return &ErrInvalidConfig{
		BaseError{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("invalid configuration for %s", field),
			Cause:   cause,
			Details: map[string]interface{}{
				"field": field,
			},
		},
	}
}

const ErrCodeRetryConfiguration ErrorCode = "ErrRetryConfiguration"

type ErrRetryConfiguration struct{ BaseError }

var NewErrRetryConfiguration = func(cause error, details map[string]interface{}) error {
	return &ErrRetryConfiguration{
		BaseError{
			Code:    ErrCodeRetryConfiguration,
			Message: "invalid retry policy",
			Cause:   cause,
			Details: details,
		},
	}
}
