// Package runner implements the PGE execution state machine: configuration
// loading, scratch preparation, SAS invocation, output validation, metadata
// generation, optional QA and optional product staging, in that fixed order.
// Each stage runs only if every previous stage succeeded; the first fatal
// failure determines the process exit code and later stages are recorded as
// skipped. Nothing is ever retried here: transient infrastructure errors are
// the surrounding orchestration layer's concern.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
	"github.com/specialistvlad/pgerun/internal/errcode"
	"github.com/specialistvlad/pgerun/internal/fsutil"
	"github.com/specialistvlad/pgerun/internal/metadata"
	"github.com/specialistvlad/pgerun/internal/pipeline"
	"github.com/specialistvlad/pgerun/internal/product"
	"github.com/specialistvlad/pgerun/internal/runconfig"
	"github.com/specialistvlad/pgerun/internal/sas"
	"github.com/specialistvlad/pgerun/internal/staging"
)

// timeResolution rounds durations in summary details to keep them readable.
const timeResolution = 10 * time.Millisecond

// Runner drives one run of one pipeline. It is stateless across runs; all
// per-run state lives in the runState threaded through the stages.
type Runner struct {
	registry  *pipeline.Registry
	out       io.Writer
	newLogger func(io.Writer) *slog.Logger
}

// New builds a runner over a loaded descriptor registry. newLogger
// constructs a logger writing to the given sink with the operator's chosen
// format and level; the runner uses it to tee stage logs into the run log
// file once that file exists.
func New(registry *pipeline.Registry, out io.Writer, newLogger func(io.Writer) *slog.Logger) *Runner {
	return &Runner{registry: registry, out: out, newLogger: newLogger}
}

// Run executes the state machine for the run configuration at path and
// returns the process exit code: 0 on success, otherwise the pipeline's
// error code base plus the failed category's offset.
func (r *Runner) Run(ctx context.Context, runConfigPath string) int {
	state := newRunState()
	logger := r.newLogger(r.out).With("run_id", state.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)
	defer state.closeLog()

	logger.Info("🚀 PGE run starting.", "runconfig", runConfigPath)

	var fatal *errcode.Record

	// step executes one stage unless a fatal record already exists, in
	// which case the stage is recorded as skipped. The run summary gets one
	// entry per stage either way.
	step := func(stage Stage, fn func() (string, *errcode.Record)) {
		if fatal != nil {
			state.record(stage, OutcomeSkipped, "not attempted after earlier failure")
			return
		}
		detail, rec := fn()
		if rec != nil {
			fatal = rec
			ctxlog.FromContext(ctx).Error("❌ Stage failed.",
				"stage", string(stage), "category", rec.Category.String(), "error", rec.Message)
			state.record(stage, OutcomeFailed, rec.Message)
			return
		}
		state.record(stage, OutcomeSucceeded, detail)
	}

	// stepIf handles the optional stages: a disabled stage is recorded as
	// skipped with its reason and never counts as a failure.
	stepIf := func(stage Stage, enabled func() (bool, string), fn func() (string, *errcode.Record)) {
		if fatal == nil {
			if on, reason := enabled(); !on {
				state.record(stage, OutcomeSkipped, reason)
				return
			}
		}
		step(stage, fn)
	}

	step(StageLoadConfig, func() (string, *errcode.Record) {
		return r.loadConfig(ctx, state, runConfigPath)
	})

	step(StagePrepScratch, func() (string, *errcode.Record) {
		detail, rec := r.prepScratch(ctx, state)
		if rec == nil {
			// From here on, every log line also lands in the run log file.
			logger = r.newLogger(io.MultiWriter(r.out, state.LogFile)).
				With("run_id", state.RunID, "pipeline", state.Descriptor.ProductIdentifier)
			ctx = ctxlog.WithLogger(ctx, logger)
		}
		return detail, rec
	})

	step(StageInvokeSAS, func() (string, *errcode.Record) {
		return r.invokeSAS(ctx, state)
	})

	step(StageValidateOutput, func() (string, *errcode.Record) {
		return r.validateOutput(ctx, state)
	})

	stepIf(StageGenerateMetadata, func() (bool, string) {
		if !state.Descriptor.MetadataEnabled() {
			return false, "metadata generation disabled by pipeline descriptor"
		}
		return true, ""
	}, func() (string, *errcode.Record) {
		return r.generateMetadata(ctx, state)
	})

	stepIf(StageInvokeQA, func() (bool, string) {
		if !state.Config.PGE.QA.Enabled {
			return false, "QA executable disabled"
		}
		return true, ""
	}, func() (string, *errcode.Record) {
		return r.invokeQA(ctx, state)
	})

	stepIf(StageStageProducts, func() (bool, string) {
		if !state.Config.PGE.Staging.Enabled {
			return false, "product staging disabled"
		}
		return true, ""
	}, func() (string, *errcode.Record) {
		return r.stageProducts(ctx, state)
	})

	exitCode := 0
	if fatal != nil {
		exitCode = fatal.ExitCode()
	}

	// Scratch holds only intermediates (the standalone SAS config, whatever
	// the SAS wrote for itself). A successful run removes it; DebugSwitch
	// retains it for inspection, and a failed run always keeps it.
	if fatal == nil && !state.Config.PGE.Debug.DebugSwitch {
		scratch := state.Config.PGE.ProductPath.ScratchPath
		if err := os.RemoveAll(scratch); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to remove scratch directory.", "dir", scratch, "error", err)
		} else {
			ctxlog.FromContext(ctx).Debug("Scratch directory removed.", "dir", scratch)
		}
	}

	r.writeSummary(ctx, state, fatal, exitCode)
	return exitCode
}

// loadConfig performs LOAD_CONFIG: parse, decode, resolve the pipeline
// descriptor and run both validation phases. Everything here normalizes to
// the configuration-invalid category; until the document has decoded far
// enough to reveal the error code base, the base is zero.
func (r *Runner) loadConfig(ctx context.Context, state *runState, path string) (string, *errcode.Record) {
	rc, err := runconfig.Load(path)
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryConfigInvalid, "%s", err)
	}
	state.Config = rc

	if err := rc.Decode(); err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryConfigInvalid, "%s", err)
	}
	state.Base = rc.PGE.Primary.ErrorCodeBase

	desc, err := r.registry.Resolve(rc.PGE.Primary.ProductIdentifier)
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryConfigInvalid, "%s", err)
	}
	state.Descriptor = desc

	// The runconfig and the deployed descriptor must agree on the exit-code
	// contract; a mismatch means the deployment is wired to the wrong
	// pipeline.
	if desc.ErrorCodeBase != state.Base {
		return "", errcode.NewFatal(state.Base, errcode.CategoryConfigInvalid,
			"runconfig declares ErrorCodeBase %d but descriptor %q declares %d",
			state.Base, desc.ProductIdentifier, desc.ErrorCodeBase)
	}

	if err := rc.Validate(state.schemaRoot()); err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryConfigInvalid, "%s", err)
	}

	ctxlog.FromContext(ctx).Info("Configuration loaded and validated.",
		"run_name", rc.Name, "pipeline", desc.ProductIdentifier, "error_code_base", state.Base)
	return fmt.Sprintf("pipeline %s validated", desc.ProductIdentifier), nil
}

// prepScratch performs PREP_SCRATCH: writable scratch and output
// directories, the single run log file, and the standalone SAS config
// document the child process will consume.
func (r *Runner) prepScratch(ctx context.Context, state *runState) (string, *errcode.Record) {
	paths := state.Config.PGE.ProductPath
	for _, dir := range []string{paths.ScratchPath, paths.OutputProductPath} {
		if err := fsutil.EnsureWritableDir(dir); err != nil {
			return "", errcode.NewFatal(state.Base, errcode.CategoryScratchUnwritable, "%s", err)
		}
	}

	// Deterministic name derived from the PGE name; at most one per run.
	state.LogPath = filepath.Join(paths.OutputProductPath, state.Config.PGE.PGEName.PGEName+".log")
	logFile, err := os.Create(state.LogPath)
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryScratchUnwritable,
			"failed to create run log %q: %s", state.LogPath, err)
	}
	state.LogFile = logFile

	sasConfigPath, err := state.Config.WriteSASConfig(paths.ScratchPath)
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryScratchUnwritable, "%s", err)
	}
	state.SASConfigPath = sasConfigPath

	return fmt.Sprintf("run log %s, SAS config %s", state.LogPath, sasConfigPath), nil
}

// invokeSAS performs INVOKE_SAS. A launch failure and a non-zero exit are
// distinct categories; the child's literal exit code is always preserved in
// the run log even though the process exit code is normalized through the
// registry.
func (r *Runner) invokeSAS(ctx context.Context, state *runState) (string, *errcode.Record) {
	result, err := sas.Invoke(ctx, r.executableRequest(state, state.Config.PGE.Primary.ProgramPath,
		state.Config.PGE.Primary.ProgramOptions))
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategorySASLaunchFailure, "%s", err)
	}
	state.SASResult = result

	if result.ExitCode != 0 {
		ctxlog.FromContext(ctx).Error("SAS executable reported a non-zero exit code.",
			"sas_exit_code", result.ExitCode, "command", result.CommandLine)
		return "", errcode.NewFatal(state.Base, errcode.CategorySASNonZeroExit,
			"SAS exited with code %d", result.ExitCode)
	}
	return fmt.Sprintf("completed in %s", result.Duration.Round(timeResolution)), nil
}

// validateOutput performs VALIDATE_OUTPUT against the expectation set
// derived from the descriptor and the run's SAS product flags.
func (r *Runner) validateOutput(ctx context.Context, state *runState) (string, *errcode.Record) {
	expectations := state.Descriptor.Expectations(state.Config.SASFlag)
	products, err := product.Validate(ctx, state.Config.PGE.ProductPath.OutputProductPath, expectations)
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryOutputValidation, "%s", err)
	}
	state.Products = products
	return fmt.Sprintf("%d product(s) discovered for %d expectation(s)", len(products), len(expectations)), nil
}

// generateMetadata performs GENERATE_METADATA. This is the one stage with a
// partial-failure collection policy: every product's failure is logged
// before the stage is marked fatal, so one bad product does not mask
// reporting on the others.
func (r *Runner) generateMetadata(ctx context.Context, state *runState) (string, *errcode.Record) {
	logger := ctxlog.FromContext(ctx)
	desc := state.Descriptor

	identity := make(map[string]string, len(desc.ISOFields)+3)
	for k, v := range desc.ISOFields {
		identity[k] = v
	}
	identity["pge_name"] = state.Config.PGE.PGEName.PGEName
	identity["product_identifier"] = desc.ProductIdentifier
	identity["run_id"] = state.RunID

	gen, err := metadata.New(
		state.resolveDescriptorPath(desc.ISOTemplatePath),
		state.resolveDescriptorPath(desc.MeasuredParametersPath),
		identity,
	)
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryMetadataGeneration, "%s", err)
	}

	var failures int
	var generated int
	for _, p := range state.Products {
		if !p.RequiresMetadata {
			continue
		}
		isoPath, err := gen.Generate(ctx, p)
		if err != nil {
			failures++
			logger.Error("Metadata generation failed for product.", "product", p.TypeToken, "error", err)
			continue
		}
		generated++
		state.ISOPaths[p.TypeToken] = isoPath
	}

	if failures > 0 {
		return "", errcode.NewFatal(state.Base, errcode.CategoryMetadataGeneration,
			"%d product metadata rendering(s) failed, %d succeeded", failures, generated)
	}
	return fmt.Sprintf("%d metadata file(s) written", generated), nil
}

// invokeQA performs INVOKE_QA with the same invocation contract as the
// primary executable. QA runs strictly after a successful main run.
func (r *Runner) invokeQA(ctx context.Context, state *runState) (string, *errcode.Record) {
	qa := state.Config.PGE.QA
	result, err := sas.Invoke(ctx, r.executableRequest(state, qa.ProgramPath, qa.ProgramOptions))
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryQALaunchFailure, "%s", err)
	}
	state.QAResult = result

	if result.ExitCode != 0 {
		ctxlog.FromContext(ctx).Error("QA executable reported a non-zero exit code.",
			"qa_exit_code", result.ExitCode, "command", result.CommandLine)
		return "", errcode.NewFatal(state.Base, errcode.CategoryQANonZeroExit,
			"QA exited with code %d", result.ExitCode)
	}
	return fmt.Sprintf("completed in %s", result.Duration.Round(timeResolution)), nil
}

// stageProducts performs STAGE_PRODUCTS: optional delivery of the finished
// products and their metadata to the configured object store.
func (r *Runner) stageProducts(ctx context.Context, state *runState) (string, *errcode.Record) {
	cfg := state.Config.PGE.Staging
	uploader, err := staging.New(staging.Options{
		Endpoint: cfg.Endpoint,
		Bucket:   cfg.Bucket,
		Prefix:   cfg.Prefix,
		UseSSL:   cfg.UseSSL,
	})
	if err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryStagingFailure, "%s", err)
	}
	if err := uploader.UploadRun(ctx, state.Products, state.ISOPaths); err != nil {
		return "", errcode.NewFatal(state.Base, errcode.CategoryStagingFailure, "%s", err)
	}
	return fmt.Sprintf("%d product(s) staged to %s", len(state.Products), cfg.Bucket), nil
}

// executableRequest builds the invocation request shared by the SAS and QA
// stages: options first, then the standalone SAS config path, executed from
// the scratch directory with the child's output teed into the run log.
func (r *Runner) executableRequest(state *runState, program string, options []string) sas.Request {
	mode := sas.ModeDirect
	if state.Config.PGE.Debug.ExecuteViaShell {
		mode = sas.ModeShell
	}
	return sas.Request{
		Program: program,
		Options: append(append([]string{}, options...), state.SASConfigPath),
		Dir:     state.Config.PGE.ProductPath.ScratchPath,
		Mode:    mode,
		LogSink: state.LogFile,
		LogPath: state.LogPath,
	}
}

// writeSummary emits the structured per-stage run summary, in declaration
// order, regardless of where the run stopped. This is the primary audit
// artifact for operators.
func (r *Runner) writeSummary(ctx context.Context, state *runState, fatal *errcode.Record, exitCode int) {
	logger := ctxlog.FromContext(ctx)

	for _, result := range state.summary {
		logger.Info("Stage outcome.",
			"stage", string(result.Stage), "outcome", string(result.Outcome), "detail", result.Detail)
	}

	if fatal == nil {
		logger.Info("✅ PGE run finished successfully.", "exit_code", 0)
		return
	}
	logger.Error("🛑 PGE run failed.",
		"exit_code", exitCode, "category", fatal.Category.String(), "error_code_base", fatal.Base)
}
