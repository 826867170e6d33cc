package model

// Phase is a state of the application workflow.
type Phase string

const (
	PhaseLanding             Phase = "landing"
	PhaseAuthenticating      Phase = "authenticating"
	PhaseRepositorySelection Phase = "repository-selection"
	PhaseFileBrowsing        Phase = "file-browsing"
	PhaseTestGeneration      Phase = "test-generation"
	PhaseTestManagement      Phase = "test-management"
	PhasePRCreation          Phase = "pr-creation"
)

// PipelineState is a state of the generation pipeline.
type PipelineState string

const (
	PipelineIdle        PipelineState = "idle"
	PipelineSummarizing PipelineState = "summarizing"
	PipelineSummarized  PipelineState = "summarized"
	PipelineCoding      PipelineState = "coding"
	PipelineCoded       PipelineState = "coded"
)
