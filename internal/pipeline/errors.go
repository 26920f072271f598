package pipeline

import "fmt"

// Stage identifies a step of the single-image pipeline.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageDetect    Stage = "detect"
	StageAnnotate  Stage = "annotate"
	StageMask      Stage = "mask"
	StageSummarise Stage = "summarise"
)

// StageError reports the first pipeline stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ComparisonError reports which image of a comparison failed. Side is 1 for
// the first image and 2 for the second.
type ComparisonError struct {
	Side int
	Err  error
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("comparison failed on image %d: %v", e.Side, e.Err)
}

func (e *ComparisonError) Unwrap() error { return e.Err }
