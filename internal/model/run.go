package model

import "time"

// Run is the history record the service keeps for every submission. The
// pipeline itself never reads it back.
type Run struct {
	ID            string           `json:"id"                      yaml:"id"`
	Name          string           `json:"name"                    yaml:"name"`
	Package       string           `json:"package"                 yaml:"package"`
	Workspace     string           `json:"workspace"               yaml:"workspace"`
	Success       bool             `json:"success"                 yaml:"success"`
	FailedStage   StageName        `json:"failedStage,omitempty"   yaml:"failedStage,omitempty"`
	Outcome       *PipelineOutcome `json:"outcome"                 yaml:"outcome"`
	JobDescriptor string           `json:"jobDescriptor,omitempty" yaml:"jobDescriptor,omitempty"`
	PublishedKeys []string         `json:"publishedKeys,omitempty" yaml:"publishedKeys,omitempty"`
	SubmittedBy   string           `json:"submittedBy,omitempty"   yaml:"submittedBy,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"               yaml:"createdAt"`
}
