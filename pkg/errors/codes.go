package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrCodeStructural: {
		Code:            ErrCodeStructural,
		Retryable:       false,
		Description:     "A container or channel the operation requires is absent",
		SuggestedAction: "Open the Transcript tab in the meeting recap and retry",
	},
	ErrCodeTransport: {
		Code:            ErrCodeTransport,
		Retryable:       true,
		Description:     "Message delivery between page and frame failed",
		SuggestedAction: "Check the frame agent is running: recap frame serve, and the Redis address in config",
	},
	ErrCodeTimeout: {
		Code:            ErrCodeTimeout,
		Retryable:       true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Increase --timeout or lower collector.max_iterations",
	},
	ErrCodeCancelled: {
		Code:            ErrCodeCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Check if cancellation was intentional",
	},
	ErrCodeParse: {
		Code:            ErrCodeParse,
		Retryable:       false,
		Description:     "Page snapshot could not be parsed",
		SuggestedAction: "Re-save the page HTML or re-record the capture",
	},
	ErrCodeUnknownOperation: {
		Code:            ErrCodeUnknownOperation,
		Retryable:       false,
		Description:     "Operation is not one of the supported handlers",
		SuggestedAction: "Use getMeetingInfo, getParticipants, extractTranscript, scrollAndExtract or extractCells",
	},
	ErrCodeProcessing: {
		Code:            ErrCodeProcessing,
		Retryable:       false,
		Description:     "Unclassified scraping failure",
		SuggestedAction: "Re-run with --debug and inspect the log",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug and inspect the log"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
