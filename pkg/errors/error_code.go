package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrderSpec     ErrorCode = 102
	ErrCodeInvalidTakeProfit    ErrorCode = 103
	ErrCodeInvalidStopLoss      ErrorCode = 104
	ErrCodeInvalidVote          ErrorCode = 105
	ErrCodeInsufficientData     ErrorCode = 106
	ErrCodeInvalidSymbol        ErrorCode = 107
	ErrCodeInvalidInterval      ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109

	// Market data errors (200-299)
	ErrCodeMarketDataFetchFailed ErrorCode = 200
	ErrCodeMarketDataParseFailed ErrorCode = 201
	ErrCodeStreamClosed          ErrorCode = 202
	ErrCodeOutOfOrderCandle      ErrorCode = 203
	ErrCodeInvalidProvider       ErrorCode = 204

	// Model/ensemble errors (300-399)
	ErrCodeModelUnavailable   ErrorCode = 300
	ErrCodeModelTimeout       ErrorCode = 301
	ErrCodeModelBadResponse   ErrorCode = 302
	ErrCodeNoModelsConfigured ErrorCode = 303

	// Risk errors (400-499)
	ErrCodeRiskStateStale   ErrorCode = 400
	ErrCodeRiskConfigError  ErrorCode = 401
	ErrCodeMonitorNotReady  ErrorCode = 402
	ErrCodeResumeNotAllowed ErrorCode = 403

	// Execution errors (500-599)
	ErrCodeOrderFailed        ErrorCode = 500
	ErrCodeOrderAmbiguous     ErrorCode = 501
	ErrCodeVenueUnavailable   ErrorCode = 502
	ErrCodeVenueRejected      ErrorCode = 503
	ErrCodeNoVenueForSymbol   ErrorCode = 504
	ErrCodeDuplicateDispatch  ErrorCode = 505
	ErrCodeReconcileFailed    ErrorCode = 506
	ErrCodePositionNotFound   ErrorCode = 507
	ErrCodeProtectiveOrderErr ErrorCode = 508

	// Bridge protocol errors (600-699)
	ErrCodeBridgeConnFailed   ErrorCode = 600
	ErrCodeBridgeTimeout      ErrorCode = 601
	ErrCodeBridgeBadFrame     ErrorCode = 602
	ErrCodeBridgeBusy         ErrorCode = 603
	ErrCodeBridgeOrderErr     ErrorCode = 604
	ErrCodeBridgeDisconnected ErrorCode = 605

	// Engine errors (700-799)
	ErrCodeEngineInitFailed  ErrorCode = 700
	ErrCodeEngineNotReady    ErrorCode = 701
	ErrCodeNoSymbols         ErrorCode = 702
	ErrCodeNoMarketData      ErrorCode = 703
	ErrCodeNoVenueConfigured ErrorCode = 704

	// Storage/audit errors (800-899)
	ErrCodeStoreInitFailed ErrorCode = 800
	ErrCodeStoreWriteFail  ErrorCode = 801
	ErrCodeQueryFailed     ErrorCode = 802

	// Callback errors (900-999)
	ErrCodeCallbackFailed ErrorCode = 900
)
