package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument      = 1000
	ErrCodeInvalidJSON          = 1001
	ErrCodeRequestTooLarge      = 1002
	ErrCodeInvalidID            = 1003
	ErrCodeMissingRequired      = 1004
	ErrCodeInvalidEmail         = 1005
	ErrCodeInvalidUsername      = 1006
	ErrCodeInvalidPassword      = 1007
	ErrCodeUnsupportedMediaType = 1008
	ErrCodeEmptyUpload          = 1009

	// Domain state (2xxx)
	ErrCodePhotoNotFound     = 2001
	ErrCodeUserNotFound      = 2002
	ErrCodeThumbnailNotFound = 2003
	ErrCodeDuplicateContent  = 2101
	ErrCodeEmailExists       = 2102
	ErrCodeUsernameExists    = 2103
	ErrCodeConflict          = 2104

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal           = 4001
	ErrCodeStoreFailure       = 4002
	ErrCodeBlobWriteFailed    = 4003
	ErrCodeCatalogWriteFailed = 4004
	ErrCodeReconcileFailed    = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodePhotoNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
