package errors

import stderrors "errors"

// Detail is the category-specific payload of a BaseError. It is a closed set:
// only the types in this file implement it, and each reports the category it refines.
type Detail interface {
	category() ErrorCategory
}

// APIDetail refines API errors with the upstream HTTP status.
type APIDetail struct {
	StatusCode int
}

// NetworkDetail refines transport failures.
type NetworkDetail struct {
	Op      string
	Timeout bool
}

// ValidationDetail lists the offending input fields.
type ValidationDetail struct {
	Fields []string
}

// AuthDetail refines authentication and session failures.
type AuthDetail struct {
	Reason string
}

// FileDetail refines file I/O failures.
type FileDetail struct {
	Path string
	Op   string
}

// AudioDetail refines audio capture failures.
type AudioDetail struct {
	Device string
}

// TTSDetail refines speech synthesis failures.
type TTSDetail struct {
	Voice string
}

// StorageDetail refines persistent storage failures.
type StorageDetail struct {
	Key string
}

func (APIDetail) category() ErrorCategory        { return CategoryAPI }
func (NetworkDetail) category() ErrorCategory    { return CategoryNetwork }
func (ValidationDetail) category() ErrorCategory { return CategoryValidation }
func (AuthDetail) category() ErrorCategory       { return CategoryAuth }
func (FileDetail) category() ErrorCategory       { return CategoryFile }
func (AudioDetail) category() ErrorCategory      { return CategoryAudio }
func (TTSDetail) category() ErrorCategory        { return CategoryTTS }
func (StorageDetail) category() ErrorCategory    { return CategoryStorage }

// DetailCategory returns the category a detail refines, or UNKNOWN for nil.
func DetailCategory(d Detail) ErrorCategory {
	if d == nil {
		return CategoryUnknown
	}
	return d.category()
}

// AsBaseError finds the first BaseError in err's chain.
func AsBaseError(err error) (*BaseError, bool) {
	var be *BaseError
	if stderrors.As(err, &be) && be != nil {
		return be, true
	}
	return nil, false
}

func detailOf[D Detail](err error) (D, bool) {
	var zero D
	be, ok := AsBaseError(err)
	if !ok {
		return zero, false
	}
	d, ok := be.Detail.(D)
	return d, ok
}

// IsAPIError reports whether err is an API error and returns its detail.
func IsAPIError(err error) (APIDetail, bool) { return detailOf[APIDetail](err) }

// IsNetworkError reports whether err is a network error and returns its detail.
func IsNetworkError(err error) (NetworkDetail, bool) { return detailOf[NetworkDetail](err) }

// IsValidationError reports whether err is a validation error and returns its detail.
func IsValidationError(err error) (ValidationDetail, bool) { return detailOf[ValidationDetail](err) }

// IsAuthError reports whether err is an auth error and returns its detail.
func IsAuthError(err error) (AuthDetail, bool) { return detailOf[AuthDetail](err) }

// IsFileError reports whether err is a file error and returns its detail.
func IsFileError(err error) (FileDetail, bool) { return detailOf[FileDetail](err) }

// IsAudioError reports whether err is an audio error and returns its detail.
func IsAudioError(err error) (AudioDetail, bool) { return detailOf[AudioDetail](err) }

// IsTTSError reports whether err is a TTS error and returns its detail.
func IsTTSError(err error) (TTSDetail, bool) { return detailOf[TTSDetail](err) }

// IsStorageError reports whether err is a storage error and returns its detail.
func IsStorageError(err error) (StorageDetail, bool) { return detailOf[StorageDetail](err) }

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	if be, ok := AsBaseError(err); ok {
		return be.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryUnknown.
func GetCategory(err error) ErrorCategory {
	if be, ok := AsBaseError(err); ok {
		return be.Category
	}
	return CategoryUnknown
}

// Cases holds one optional branch per variant for Match. Nil branches are skipped
// and fall through to Default.
type Cases struct {
	API        func(*BaseError, APIDetail)
	Network    func(*BaseError, NetworkDetail)
	Validation func(*BaseError, ValidationDetail)
	Auth       func(*BaseError, AuthDetail)
	File       func(*BaseError, FileDetail)
	Audio      func(*BaseError, AudioDetail)
	TTS        func(*BaseError, TTSDetail)
	Storage    func(*BaseError, StorageDetail)
	Default    func(*BaseError)
}

// Match dispatches e to the branch for its variant.
func Match(e *BaseError, c Cases) {
	if e == nil {
		return
	}
	switch d := e.Detail.(type) {
	case APIDetail:
		if c.API != nil {
			c.API(e, d)
			return
		}
	case NetworkDetail:
		if c.Network != nil {
			c.Network(e, d)
			return
		}
	case ValidationDetail:
		if c.Validation != nil {
			c.Validation(e, d)
			return
		}
	case AuthDetail:
		if c.Auth != nil {
			c.Auth(e, d)
			return
		}
	case FileDetail:
		if c.File != nil {
			c.File(e, d)
			return
		}
	case AudioDetail:
		if c.Audio != nil {
			c.Audio(e, d)
			return
		}
	case TTSDetail:
		if c.TTS != nil {
			c.TTS(e, d)
			return
		}
	case StorageDetail:
		if c.Storage != nil {
			c.Storage(e, d)
			return
		}
	}
	if c.Default != nil {
		c.Default(e)
	}
}
