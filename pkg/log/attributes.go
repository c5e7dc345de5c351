// Package log defines standard attribute keys for training and inference.
//
// The keys follow a hierarchical naming convention ("model.name",
// "data.stars", "cannon.pixel") so log lines can be filtered per model,
// per pixel, or per star.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model, e.g. "CannonModel".
	ModelNameKey = "model.name"

	// EstimatorIDKey is a unique identifier for one model instance (a UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "train", "fit", "predict", "validate", "evaluate"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging, e.g. "cannon".
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase: "training", "inference", "validation".
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// StarsKey is the number of stars (rows) in the flux arrays.
	StarsKey = "data.stars"

	// PixelsKey is the number of pixels (columns) per spectrum.
	PixelsKey = "data.pixels"

	// TermsKey is the number of vectorizer terms, bias included.
	TermsKey = "data.terms"

	// LabelsKey is the number of physical labels.
	LabelsKey = "data.labels"
)

// Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// WorkersKey records how many workers a mapper ran with.
	WorkersKey = "perf.workers"
)

// Per-pixel and per-star context
const (
	PixelKey          = "cannon.pixel"
	StarKey           = "cannon.star"
	ScatterKey        = "cannon.scatter"
	FixedScatterKey   = "cannon.fixed_scatter"
	RegularizationKey = "cannon.regularization"
	AlgorithmKey      = "optimizer.algorithm"
	EvaluationsKey    = "optimizer.evaluations"
	IterationsKey     = "optimizer.iterations"
	StatusKey         = "optimizer.status"
	EventKindKey      = "event.kind"
	PanicDetailKey    = "event.panic"
	StalledKey        = "training.stalled"
	SingularKey       = "training.singular"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides a hint for resolving an issue.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationTrain    = "train"
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationValidate = "validate"
	OperationEvaluate = "evaluate"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseValidation = "validation"

	ErrorSingularMatrix = "SINGULAR_MATRIX"
	ErrorOptimizerStall = "OPTIMIZER_STALL"
	ErrorPixelPanic     = "PIXEL_PANIC"
)
