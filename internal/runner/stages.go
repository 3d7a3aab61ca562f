package runner

// Stage names one step of the fixed PGE execution sequence. Stage names
// appear verbatim in the run summary, which operators and downstream
// tooling grep for, so they never change casually.
type Stage string

const (
	StageLoadConfig       Stage = "LOAD_CONFIG"
	StagePrepScratch      Stage = "PREP_SCRATCH"
	StageInvokeSAS        Stage = "INVOKE_SAS"
	StageValidateOutput   Stage = "VALIDATE_OUTPUT"
	StageGenerateMetadata Stage = "GENERATE_METADATA"
	StageInvokeQA         Stage = "INVOKE_QA"
	StageStageProducts    Stage = "STAGE_PRODUCTS"
)

// Outcome is the recorded result of one stage.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeSkipped   Outcome = "SKIPPED"
)

// StageResult is one line of the run summary: a stage, its outcome and a
// short operator-facing detail.
type StageResult struct {
	Stage   Stage
	Outcome Outcome
	Detail  string
}
