package utils

import "errors"

// Common application errors used across services.
var (
	ErrProviderNotFound   = errors.New("PROVIDER_NOT_FOUND")
	ErrProviderInactive   = errors.New("PROVIDER_INACTIVE")
	ErrProviderNotReady   = errors.New("PROVIDER_NOT_CONFIGURED")
	ErrRunInProgress      = errors.New("RUN_IN_PROGRESS")
	ErrInvalidProtocol    = errors.New("INVALID_PROTOCOL")
	ErrFileNotFound       = errors.New("FILE_NOT_FOUND")
	ErrLogNotFound        = errors.New("LOG_NOT_FOUND")
	ErrSeedFileUnreadable = errors.New("SEED_FILE_UNREADABLE")
	ErrSeedFormatUnknown  = errors.New("SEED_FORMAT_UNKNOWN")
)
