package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSide          ErrorCode = 102
	ErrCodeInvalidPeriod        ErrorCode = 103
	ErrCodeMissingParameter     ErrorCode = 104

	// Market data errors (200-299)
	ErrCodeDataUnavailable     ErrorCode = 200
	ErrCodeInsufficientHistory ErrorCode = 201
	ErrCodeMarketDataParse     ErrorCode = 202
	ErrCodePriceUnavailable    ErrorCode = 203

	// Lifecycle errors (300-399)
	ErrCodeNotFound          ErrorCode = 300
	ErrCodeAlreadyResolved   ErrorCode = 301
	ErrCodeInvalidTransition ErrorCode = 302

	// Execution errors (400-499)
	ErrCodeExecutionUnavailable ErrorCode = 400
	ErrCodeNotImplemented       ErrorCode = 401
	ErrCodeOrderFailed          ErrorCode = 402
	ErrCodePositionClosed       ErrorCode = 403

	// Backtest errors (500-599)
	ErrCodeBacktestAborted     ErrorCode = 500
	ErrCodeBacktestNoData      ErrorCode = 501
	ErrCodeStrategyNotFound    ErrorCode = 502
	ErrCodeStrategyConfigError ErrorCode = 503
	ErrCodeBacktestJobNotFound ErrorCode = 504

	// Store errors (600-699)
	ErrCodeStoreQueryFailed ErrorCode = 600
	ErrCodeStoreInitFailed  ErrorCode = 601
)
