package errors

import (
	"github.com/mezonai/starchain/jsonx"
)

// NetworkErrorCode represents standardized error codes returned by the API
type NetworkErrorCode string

const (
	// General errors
	ErrCodeInternal NetworkErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest   NetworkErrorCode = "invalid_request"
	ErrCodeInvalidAddress   NetworkErrorCode = "invalid_address"
	ErrCodeInvalidSignature NetworkErrorCode = "invalid_signature"
	ErrCodeInvalidStar      NetworkErrorCode = "invalid_star"
	ErrCodeInvalidHeight    NetworkErrorCode = "invalid_height"

	// Business logic errors
	ErrCodeBlockNotFound       NetworkErrorCode = "block_not_found"
	ErrCodeSessionNotFound     NetworkErrorCode = "session_not_found"
	ErrCodeSessionNotValidated NetworkErrorCode = "session_not_validated"
	ErrCodeDuplicateStar       NetworkErrorCode = "duplicate_star"

	// System errors
	ErrCodeRateLimited NetworkErrorCode = "rate_limited"
)

// NetworkError represents a standardized API error
type NetworkError struct {
	Code    NetworkErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	err, _ := jsonx.Marshal(NetworkError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidRequest       = "Request format is invalid"
	ErrMsgInvalidAddress       = "Wallet address is invalid"
	ErrMsgInvalidSignature     = "Message signature is invalid"
	ErrMsgInvalidHeight        = "Block height must be a non-negative integer"
	ErrMsgBlockNotFound        = "Requested block could not be found"
	ErrMsgSessionNotFound      = "Session has expired or was never created. Please initiate a validation request first"
	ErrMsgSessionNotValidated  = "No validated session for this address. Please validate your signature first"
	ErrMsgDuplicateStar        = "This star is already registered"
	ErrMsgInternal             = "Server error, please try again"
	ErrMsgRateLimited          = "Too many requests, please slow down"
	ErrMsgRequestBodyTooLarge  = "Request body exceeds maximum allowed size (%d bytes)"
	ErrMsgShortTextTooLong     = "Short text length exceeds maximum (%d) for field '%s'"
	ErrMsgLongTextTooLong      = "Long text length exceeds maximum (%d) for field '%s'"
	ErrMsgInvalidCharacters    = "Field '%s' contains invalid characters"
	ErrMsgRequiredField        = "Field '%s' is required"
	ErrMsgNonASCII             = "Field '%s' must contain ASCII text only"
)

// NewError creates a new NetworkError and returns it as error interface
func NewError(code NetworkErrorCode, message string) error {
	return &NetworkError{
		Code:    code,
		Message: message,
	}
}
