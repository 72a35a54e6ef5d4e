package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_012"
	ErrCodeExternalService    ErrorCode = "COMMON_013"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_015"
	ErrCodeMessageQueue       ErrorCode = "COMMON_016"
	ErrCodeStorage            ErrorCode = "COMMON_017"
)

// Short aliases used at call sites.
const (
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
)

// Configuration Error Codes. Any of these is fatal at start-up.
const (
	ErrCodeConfiguration     ErrorCode = "CFG_001"
	ErrCodeConfigFileMissing ErrorCode = "CFG_002"
	ErrCodeConfigInvalid     ErrorCode = "CFG_003"
)

// Reference Data Error Codes
const (
	ErrCodeCountryNotFound      ErrorCode = "REF_001"
	ErrCodeIndustryNotFound     ErrorCode = "REF_002"
	ErrCodeReferenceLoadFailed  ErrorCode = "REF_003"
	ErrCodeReferenceDataInvalid ErrorCode = "REF_004"
)

// Registry Error Codes
const (
	ErrCodeRegistryLoadFailed  ErrorCode = "REG_001"
	ErrCodeRegistrySchemaError ErrorCode = "REG_002"
	ErrCodeRegistryNoMatch     ErrorCode = "REG_003"
	ErrCodeRegistryKindUnknown ErrorCode = "REG_004"
)

// Oracle Error Codes
const (
	ErrCodeOracleUnavailable ErrorCode = "ORC_001"
	ErrCodeOracleTimeout     ErrorCode = "ORC_002"
	ErrCodeOracleMalformed   ErrorCode = "ORC_003"
	ErrCodeOracleDisabled    ErrorCode = "ORC_004"
	ErrCodeOracleCircuitOpen ErrorCode = "ORC_005"
	ErrCodeOracleRateLimited ErrorCode = "ORC_006"
)

// Enrichment Error Codes
const (
	ErrCodeEnrichmentUnavailable ErrorCode = "ENR_001"
	ErrCodeEnrichmentMalformed   ErrorCode = "ENR_002"
	ErrCodeEnrichmentDisabled    ErrorCode = "ENR_003"
)

// Assessment Error Codes
const (
	ErrCodeAssessmentInvalid ErrorCode = "ASM_001"
	ErrCodeAssessmentFailed  ErrorCode = "ASM_002"
	ErrCodeBatchTooLarge     ErrorCode = "ASM_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,
	ErrCodeMessageQueue:       http.StatusInternalServerError,
	ErrCodeStorage:            http.StatusInternalServerError,

	ErrCodeConfiguration:     http.StatusInternalServerError,
	ErrCodeConfigFileMissing: http.StatusInternalServerError,
	ErrCodeConfigInvalid:     http.StatusInternalServerError,

	ErrCodeCountryNotFound:      http.StatusNotFound,
	ErrCodeIndustryNotFound:     http.StatusNotFound,
	ErrCodeReferenceLoadFailed:  http.StatusInternalServerError,
	ErrCodeReferenceDataInvalid: http.StatusInternalServerError,

	ErrCodeRegistryLoadFailed:  http.StatusInternalServerError,
	ErrCodeRegistrySchemaError: http.StatusInternalServerError,
	ErrCodeRegistryNoMatch:     http.StatusNotFound,
	ErrCodeRegistryKindUnknown: http.StatusBadRequest,

	ErrCodeOracleUnavailable: http.StatusBadGateway,
	ErrCodeOracleTimeout:     http.StatusGatewayTimeout,
	ErrCodeOracleMalformed:   http.StatusBadGateway,
	ErrCodeOracleDisabled:    http.StatusServiceUnavailable,
	ErrCodeOracleCircuitOpen: http.StatusServiceUnavailable,
	ErrCodeOracleRateLimited: http.StatusTooManyRequests,

	ErrCodeEnrichmentUnavailable: http.StatusBadGateway,
	ErrCodeEnrichmentMalformed:   http.StatusBadGateway,
	ErrCodeEnrichmentDisabled:    http.StatusServiceUnavailable,

	ErrCodeAssessmentInvalid: http.StatusBadRequest,
	ErrCodeAssessmentFailed:  http.StatusInternalServerError,
	ErrCodeBatchTooLarge:     http.StatusRequestEntityTooLarge,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",
	ErrCodeMessageQueue:       "message queue error",
	ErrCodeStorage:            "object storage error",

	ErrCodeConfiguration:     "invalid configuration",
	ErrCodeConfigFileMissing: "configuration file not found",
	ErrCodeConfigInvalid:     "configuration failed validation",

	ErrCodeCountryNotFound:      "country not found in reference data",
	ErrCodeIndustryNotFound:     "industry not found in reference data",
	ErrCodeReferenceLoadFailed:  "failed to load reference data",
	ErrCodeReferenceDataInvalid: "reference data is invalid",

	ErrCodeRegistryLoadFailed:  "failed to load registry snapshot",
	ErrCodeRegistrySchemaError: "registry snapshot does not match its schema",
	ErrCodeRegistryNoMatch:     "company not found in any registry",
	ErrCodeRegistryKindUnknown: "unknown registry kind",

	ErrCodeOracleUnavailable: "oracle unavailable",
	ErrCodeOracleTimeout:     "oracle request timed out",
	ErrCodeOracleMalformed:   "oracle returned a malformed response",
	ErrCodeOracleDisabled:    "oracle is disabled",
	ErrCodeOracleCircuitOpen: "oracle circuit breaker is open",
	ErrCodeOracleRateLimited: "oracle rate limit exceeded",

	ErrCodeEnrichmentUnavailable: "enrichment source unavailable",
	ErrCodeEnrichmentMalformed:   "enrichment source returned a malformed response",
	ErrCodeEnrichmentDisabled:    "enrichment is disabled",

	ErrCodeAssessmentInvalid: "invalid assessment request",
	ErrCodeAssessmentFailed:  "assessment failed",
	ErrCodeBatchTooLarge:     "batch exceeds the maximum size",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
