// Package errors provides structured error handling for IndexChat.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and extraction errors
//   - 3XX: Embedding provider errors
//   - 4XX: Validation errors
//   - 5XX: Index store errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and extraction I/O errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates embedding provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStore indicates index store errors.
	CategoryStore Category = "STORE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid      = "ERR_101_CONFIG_INVALID"
	ErrCodeCredentialsMissing = "ERR_102_CREDENTIALS_MISSING"
	ErrCodeChunkOverlap       = "ERR_103_CHUNK_OVERLAP_INVALID"

	// IO errors (200-299)
	ErrCodeInputDirMissing  = "ERR_201_INPUT_DIR_MISSING"
	ErrCodeExtractionFailed = "ERR_202_EXTRACTION_FAILED"
	ErrCodeDecodeFailed     = "ERR_203_DECODE_FAILED"

	// Provider errors (300-399)
	ErrCodeProviderAuth      = "ERR_301_PROVIDER_AUTH"
	ErrCodeProviderRateLimit = "ERR_302_PROVIDER_RATE_LIMIT"
	ErrCodeProviderWarmup    = "ERR_303_PROVIDER_WARMUP"
	ErrCodeProviderNetwork   = "ERR_304_PROVIDER_NETWORK"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"

	// Store errors (500-599)
	ErrCodeStoreFailed    = "ERR_501_STORE_FAILED"
	ErrCodeStoreLocked    = "ERR_502_STORE_LOCKED"
	ErrCodeIndexingFailed = "ERR_503_INDEXING_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryStore
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryStore
	}
}

// severityFromCode derives severity from the error code.
// Configuration errors and provider authentication failures are
// fatal; everything else is skippable for the single unit of work.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryProvider:
		if code == ErrCodeProviderAuth {
			return SeverityFatal
		}
		return SeverityError
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether the code marks a transient condition.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderWarmup, ErrCodeProviderRateLimit, ErrCodeProviderNetwork:
		return true
	default:
		return false
	}
}
