package diag

// Stable diagnostic codes. Downstream consumers key behavior off these,
// so renaming one is a breaking change.
const (
	CodeSyntaxError = "SYNTAX_ERROR"

	CodeMissingTimeframe     = "MISSING_TIMEFRAME"
	CodeTimeframeOrder       = "TIMEFRAME_ORDER"
	CodeConfidenceRange      = "CONFIDENCE_RANGE"
	CodeDuplicateName        = "DUPLICATE_NAME"
	CodeUndefinedReference   = "UNDEFINED_REFERENCE"
	CodeDependencyCycle      = "DEPENDENCY_CYCLE"
	CodeNonChronological     = "NON_CHRONOLOGICAL_SERIES"
	CodeMissingUncertainty   = "MISSING_UNCERTAINTY"
	CodeMissingSource        = "MISSING_SOURCE"
	CodeInvalidDistribution  = "INVALID_DISTRIBUTION"
	CodeProbabilityRange     = "PROBABILITY_RANGE"
	CodeInvalidRuns          = "INVALID_RUNS"
	CodeConvergenceThreshold = "CONVERGENCE_THRESHOLD"
	CodeWatchTarget          = "WATCH_TARGET"
	CodeCalibrateTarget      = "CALIBRATE_TARGET"
)
