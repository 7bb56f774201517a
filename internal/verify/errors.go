package verify

import "errors"

var (
	// ErrShapeMismatch indicates an update batch whose arrays disagree in
	// length. The batch is rejected and state is left untouched.
	ErrShapeMismatch = errors.New("verify: batch array lengths do not match")

	// ErrConfiguration indicates input that contradicts the accumulator's
	// frozen configuration, e.g. a probability batch with no bins configured.
	ErrConfiguration = errors.New("verify: batch incompatible with accumulator configuration")

	// ErrIncompatibleAccumulator indicates a merge between accumulators with
	// different identity or configuration. This is a run-integrity bug and is
	// never resolved silently.
	ErrIncompatibleAccumulator = errors.New("verify: accumulators are not merge-compatible")
)
