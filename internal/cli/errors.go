package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	ErrVaultNotFound     = "VAULT_NOT_FOUND"
	ErrVaultNotSpecified = "VAULT_NOT_SPECIFIED"
	ErrConfigInvalid     = "CONFIG_INVALID"
	ErrConfigWrite       = "CONFIG_WRITE_ERROR"

	ErrNoConnections      = "NO_CONNECTIONS"
	ErrConnectionNotFound = "CONNECTION_NOT_FOUND"
	ErrServiceUnreachable = "SERVICE_UNREACHABLE"

	ErrSyncLocked   = "SYNC_LOCKED"
	ErrSyncFailures = "SYNC_FAILURES"

	ErrDatabaseError = "DATABASE_ERROR"
	ErrRunNotFound   = "RUN_NOT_FOUND"

	ErrFileReadError = "FILE_READ_ERROR"
	ErrInvalidInput  = "INVALID_INPUT"
	ErrInternal      = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnConnectionInvalid = "CONNECTION_INVALID"
	WarnHistoryFailed     = "HISTORY_WRITE_FAILED"
	WarnNotSignedIn       = "NOT_SIGNED_IN"
	WarnLayerMismatch     = "LAYER_MISMATCH"
	WarnMapDirective      = "MAP_DIRECTIVE"
)
