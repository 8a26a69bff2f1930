package workflow

import "errors"

// Stage is a named point in the fixed ordered approval pipeline.
type Stage string

const (
	StageRequester              Stage = "requester"
	StageDepartmentHeadApproval Stage = "departmentHeadApproval"
	StageFinancialApproval      Stage = "financialApproval"
	StagePurchasingReview       Stage = "purchasingReview"
	StageCompleted              Stage = "completed"
)

// pipeline is the authoritative stage order. StageCompleted terminates it.
var pipeline = []Stage{
	StageRequester,
	StageDepartmentHeadApproval,
	StageFinancialApproval,
	StagePurchasingReview,
	StageCompleted,
}

var (
	// ErrUnknownStage occurs when a stage is not part of the pipeline.
	ErrUnknownStage = errors.New("workflow: unknown stage")
	// ErrPipelineComplete occurs when advancing past the final stage.
	ErrPipelineComplete = errors.New("workflow: pipeline already completed")
	// ErrInvalidReturnTarget occurs when returning to a stage outside the menu.
	ErrInvalidReturnTarget = errors.New("workflow: invalid return target")
)

// Stages returns the pipeline in order.
func Stages() []Stage {
	out := make([]Stage, len(pipeline))
	copy(out, pipeline)
	return out
}

// ValidStage reports whether s is a member of the pipeline.
func ValidStage(s Stage) bool {
	return stageIndex(s) >= 0
}

// NextStage returns the stage following current in the pipeline. Advancing
// from the last approval stage lands on StageCompleted; advancing from
// StageCompleted itself is an error.
func NextStage(current Stage) (Stage, error) {
	idx := stageIndex(current)
	if idx < 0 {
		return "", ErrUnknownStage
	}
	if pipeline[idx] == StageCompleted {
		return "", ErrPipelineComplete
	}
	return pipeline[idx+1], nil
}

// ReturnTargets lists the stages an actor may send a request back to. The
// reject path never computes a target; the actor picks one from this menu.
func ReturnTargets(current Stage) []Stage {
	idx := stageIndex(current)
	if idx <= 0 {
		return nil
	}
	targets := make([]Stage, 0, idx)
	for _, s := range pipeline[:idx] {
		if s == StageCompleted {
			continue
		}
		targets = append(targets, s)
	}
	return targets
}

// ValidateReturnTarget checks that target is a legal return destination
// from the current stage.
func ValidateReturnTarget(current, target Stage) error {
	for _, s := range ReturnTargets(current) {
		if s == target {
			return nil
		}
	}
	return ErrInvalidReturnTarget
}

func stageIndex(s Stage) int {
	for i, stage := range pipeline {
		if stage == s {
			return i
		}
	}
	return -1
}

// DocumentStatus is the coarse projection of stage progress carried on the
// purchase request header. It is derived, never independently authoritative.
type DocumentStatus string

const (
	DocumentDraft      DocumentStatus = "Draft"
	DocumentInProgress DocumentStatus = "InProgress"
	DocumentCompleted  DocumentStatus = "Completed"
	DocumentCancelled  DocumentStatus = "Cancelled"
)

// ProjectStatus derives the document status from the current stage. A
// cancelled flag overrides stage progress.
func ProjectStatus(stage Stage, cancelled bool) DocumentStatus {
	if cancelled {
		return DocumentCancelled
	}
	switch stage {
	case StageRequester:
		return DocumentDraft
	case StageCompleted:
		return DocumentCompleted
	default:
		return DocumentInProgress
	}
}
