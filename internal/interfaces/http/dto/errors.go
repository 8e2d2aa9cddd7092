package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeInsufficientPaymentCapacity is used when allocations exceed the payment's unallocated remainder
	ErrCodeInsufficientPaymentCapacity = "ERR_INSUFFICIENT_PAYMENT_CAPACITY"
	// ErrCodeDebtNotSettleable is used when a debt cannot accept allocations in its current state
	ErrCodeDebtNotSettleable = "ERR_DEBT_NOT_SETTLEABLE"
	// ErrCodeAmountExceedsPending is used when an allocation exceeds the debt's pending balance
	ErrCodeAmountExceedsPending = "ERR_AMOUNT_EXCEEDS_PENDING"
	// ErrCodeReversalNotAllowed is used when a payment reversal is blocked
	ErrCodeReversalNotAllowed = "ERR_REVERSAL_NOT_ALLOWED"
	// ErrCodeAlreadyAllocated is used when a payment already allocates to the same debt
	ErrCodeAlreadyAllocated = "ERR_ALREADY_ALLOCATED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:                http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:                http.StatusUnprocessableEntity,
	ErrCodeInsufficientPaymentCapacity: http.StatusUnprocessableEntity,
	ErrCodeDebtNotSettleable:           http.StatusUnprocessableEntity,
	ErrCodeAmountExceedsPending:        http.StatusUnprocessableEntity,
	ErrCodeReversalNotAllowed:          http.StatusUnprocessableEntity,
	ErrCodeAlreadyAllocated:            http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized
// ERR_-prefixed transport codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":                      ErrCodeNotFound,
	"ALREADY_EXISTS":                 ErrCodeAlreadyExists,
	"INVALID_INPUT":                  ErrCodeInvalidInput,
	"INVALID_STATE":                  ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":           ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":               ErrCodeValidation,
	"INSUFFICIENT_PAYMENT_CAPACITY":  ErrCodeInsufficientPaymentCapacity,
	"DEBT_NOT_SETTLEABLE":            ErrCodeDebtNotSettleable,
	"AMOUNT_EXCEEDS_PENDING":         ErrCodeAmountExceedsPending,
	"REVERSAL_NOT_ALLOWED":           ErrCodeReversalNotAllowed,
	"ALREADY_ALLOCATED":              ErrCodeAlreadyAllocated,
	"BAD_REQUEST":                    ErrCodeBadRequest,
	"INTERNAL_ERROR":                 ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
