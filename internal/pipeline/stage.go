package pipeline

import "fmt"

// Stage is a state of the orchestrator. A run moves linearly from
// StageIdle to StageDone, or to StageFailed from any stage.
type Stage int32

const (
	StageIdle Stage = iota
	StageIndexing
	StagePreprocessing
	StageCompositing
	StagePersisting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageIndexing:
		return "indexing"
	case StagePreprocessing:
		return "preprocessing"
	case StageCompositing:
		return "compositing"
	case StagePersisting:
		return "persisting"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int32(s))
	}
}

// StageError records the stage in which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
