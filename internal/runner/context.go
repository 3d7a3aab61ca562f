package runner

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/specialistvlad/pgerun/internal/pipeline"
	"github.com/specialistvlad/pgerun/internal/product"
	"github.com/specialistvlad/pgerun/internal/runconfig"
	"github.com/specialistvlad/pgerun/internal/sas"
)

// runState is the explicit per-run context threaded through every stage.
// It is constructed once when the configuration loads and passed by
// reference; no component reads run state through ambient globals.
type runState struct {
	// RunID tags every log line of this run.
	RunID string

	Config     *runconfig.RunConfig
	Descriptor *pipeline.Descriptor
	// Base is the pipeline's error code base. Zero until the configuration
	// has decoded far enough to know it; exit codes then degrade to the
	// bare category offset.
	Base int

	// LogFile is the single combined run log: stage records and the SAS/QA
	// child output all land here. At most one per run, opened during
	// PREP_SCRATCH under a deterministic name.
	LogFile *os.File
	LogPath string

	SASConfigPath string
	Products      []product.Product
	// ISOPaths maps a product's type token to its rendered metadata file.
	ISOPaths map[string]string

	SASResult *sas.Result
	QAResult  *sas.Result

	summary []StageResult
}

// newRunState seeds a run with a fresh identity.
func newRunState() *runState {
	return &runState{
		RunID:    uuid.NewString(),
		ISOPaths: make(map[string]string),
	}
}

// record appends one stage outcome to the run summary.
func (s *runState) record(stage Stage, outcome Outcome, detail string) {
	s.summary = append(s.summary, StageResult{Stage: stage, Outcome: outcome, Detail: detail})
}

// schemaRoot is the directory against which the descriptor's relative paths
// (SAS schema, ISO template, measured-parameter table) resolve: the
// directory holding the descriptor manifest itself.
func (s *runState) schemaRoot() string {
	return filepath.Dir(s.Descriptor.SourcePath)
}

// resolveDescriptorPath resolves one descriptor-relative path.
func (s *runState) resolveDescriptorPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.schemaRoot(), p)
}

// closeLog flushes and closes the run log, if one was opened.
func (s *runState) closeLog() {
	if s.LogFile != nil {
		_ = s.LogFile.Close()
	}
}
