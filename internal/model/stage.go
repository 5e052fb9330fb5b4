package model

import "time"

// StageName identifies one step of the pipeline.
type StageName string

const (
	StageValidate    StageName = "validate"
	StageExecute     StageName = "execute"
	StageScaffold    StageName = "scaffold"
	StagePackage     StageName = "package"
	StageVerify      StageName = "verify"
	StageRunArtifact StageName = "run-artifact"
)

// StageStatus is the outcome of a single stage.
//
// TimedOut and Cancelled are kept apart from Failure: a timed out stage may be
// worth retrying with a larger deadline, a failed one is not.
type StageStatus string

const (
	StatusSuccess   StageStatus = "success"
	StatusFailure   StageStatus = "failure"
	StatusTimedOut  StageStatus = "timed_out"
	StatusCancelled StageStatus = "cancelled"
)

// StageResult is created once per stage invocation and never mutated after the
// stage returns it.
type StageResult struct {
	Stage      StageName     `json:"stage"                yaml:"stage"`
	Status     StageStatus   `json:"status"               yaml:"status"`
	Diagnostic string        `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
	Artifact   string        `json:"artifact,omitempty"   yaml:"artifact,omitempty"`
	ExitCode   int           `json:"exitCode"             yaml:"exitCode"`
	Duration   time.Duration `json:"duration"             yaml:"duration"`
}

// OK reports whether the stage succeeded.
func (r StageResult) OK() bool {
	return r.Status == StatusSuccess
}

// PipelineOutcome lists the stages that were attempted, in order. It stops at
// the first result that is not a success.
type PipelineOutcome struct {
	Results     []StageResult `json:"results"               yaml:"results"`
	Success     bool          `json:"success"               yaml:"success"`
	FailedStage StageName     `json:"failedStage,omitempty" yaml:"failedStage,omitempty"`
}

// NewOutcome builds the outcome for the given results. total is the number of
// stages the pipeline defines: a run only succeeds when every one of them ran
// and succeeded.
func NewOutcome(results []StageResult, total int) *PipelineOutcome {
	out := &PipelineOutcome{
		Results: append([]StageResult(nil), results...),
		Success: len(results) == total,
	}
	for _, r := range results {
		if !r.OK() {
			out.Success = false
			out.FailedStage = r.Stage
			break
		}
	}
	return out
}

// Failed returns the first non-success result, or nil.
func (o *PipelineOutcome) Failed() *StageResult {
	for i := range o.Results {
		if !o.Results[i].OK() {
			return &o.Results[i]
		}
	}
	return nil
}

// Artifact returns the packaged artifact path discovered by the verify stage.
func (o *PipelineOutcome) Artifact() string {
	for _, r := range o.Results {
		if r.Stage == StageVerify && r.OK() {
			return r.Artifact
		}
	}
	return ""
}
