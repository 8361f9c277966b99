package errors

import "strconv"

// Default codes for variants without a natural numeric code.
const (
	CodeNetwork            = "NETWORK_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeAuth               = "AUTH_ERROR"
	CodeFile               = "FILE_ERROR"
	CodeAudio              = "AUDIO_ERROR"
	CodeTTS                = "TTS_ERROR"
	CodeStorage            = "STORAGE_ERROR"
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
	CodeRetryCanceled      = "RETRY_CANCELED"
	CodePanic              = "PANIC"
)

// DefaultSeverity is the severity the normalizer assigns to a category when the
// input carries none.
func DefaultSeverity(category ErrorCategory) ErrorSeverity {
	switch category {
	case CategoryValidation:
		return SeverityLow
	case CategoryAuth, CategoryStorage:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func defaultCode(category ErrorCategory) string {
	switch category {
	case CategoryNetwork:
		return CodeNetwork
	case CategoryValidation:
		return CodeValidation
	case CategoryAuth:
		return CodeAuth
	case CategoryFile:
		return CodeFile
	case CategoryAudio:
		return CodeAudio
	case CategoryTTS:
		return CodeTTS
	case CategoryStorage:
		return CodeStorage
	default:
		return CodeUnknown
	}
}

// New creates a BaseError without variant detail.
func New(category ErrorCategory, severity ErrorSeverity, code, message string) *BaseError {
	if code == "" {
		code = defaultCode(category)
	}
	return &BaseError{Code: code, Message: message, Category: category, Severity: severity}
}

// NewAPIError creates an API error; 5xx statuses are HIGH, everything else MEDIUM.
func NewAPIError(statusCode int, message string) *BaseError {
	severity := SeverityMedium
	if statusCode >= 500 {
		severity = SeverityHigh
	}
	return &BaseError{
		Code:     strconv.Itoa(statusCode),
		Message:  message,
		Category: CategoryAPI,
		Severity: severity,
		Detail:   APIDetail{StatusCode: statusCode},
	}
}

func NewNetworkError(op, message string, timeout bool) *BaseError {
	return variant(CategoryNetwork, message, NetworkDetail{Op: op, Timeout: timeout})
}

func NewValidationError(message string, fields ...string) *BaseError {
	return variant(CategoryValidation, message, ValidationDetail{Fields: fields})
}

func NewAuthError(reason, message string) *BaseError {
	return variant(CategoryAuth, message, AuthDetail{Reason: reason})
}

func NewFileError(op, path, message string) *BaseError {
	return variant(CategoryFile, message, FileDetail{Op: op, Path: path})
}

func NewAudioError(device, message string) *BaseError {
	return variant(CategoryAudio, message, AudioDetail{Device: device})
}

func NewTTSError(voice, message string) *BaseError {
	return variant(CategoryTTS, message, TTSDetail{Voice: voice})
}

func NewStorageError(key, message string) *BaseError {
	return variant(CategoryStorage, message, StorageDetail{Key: key})
}

// MaxRetriesExceeded is returned by the retry executor when it was never allowed an attempt.
func MaxRetriesExceeded() *BaseError {
	return New(CategoryUnknown, SeverityMedium, CodeMaxRetriesExceeded, "max retries exceeded")
}

// RetryCanceled wraps the context error that ended a retry sequence early.
func RetryCanceled(cause error) *BaseError {
	return New(CategoryUnknown, SeverityLow, CodeRetryCanceled, "retry canceled").WithCause(cause)
}

// Restore rebuilds a BaseError from its serialized parts, as received from
// another service. statusCode is only used for API errors and falls back to
// the numeric code; fields only for VALIDATION.
func Restore(category ErrorCategory, severity ErrorSeverity, code, message string, statusCode int, fields []string) *BaseError {
	be := New(category, severity, code, message)
	be.Detail = detailFor(category)
	switch category {
	case CategoryAPI:
		if statusCode == 0 {
			statusCode, _ = strconv.Atoi(be.Code)
		}
		be.Detail = APIDetail{StatusCode: statusCode}
	case CategoryValidation:
		be.Detail = ValidationDetail{Fields: fields}
	}
	return be
}

func variant(category ErrorCategory, message string, d Detail) *BaseError {
	return &BaseError{
		Code:     defaultCode(category),
		Message:  message,
		Category: category,
		Severity: DefaultSeverity(category),
		Detail:   d,
	}
}

// detailFor builds the zero-valued detail for a category, used when the
// normalizer has only a hint or a self-declared category to go on.
func detailFor(category ErrorCategory) Detail {
	switch category {
	case CategoryAPI:
		return APIDetail{}
	case CategoryNetwork:
		return NetworkDetail{}
	case CategoryValidation:
		return ValidationDetail{}
	case CategoryAuth:
		return AuthDetail{}
	case CategoryFile:
		return FileDetail{}
	case CategoryAudio:
		return AudioDetail{}
	case CategoryTTS:
		return TTSDetail{}
	case CategoryStorage:
		return StorageDetail{}
	default:
		return nil
	}
}
