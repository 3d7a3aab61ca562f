// Package errcode defines the exit-code contract between a PGE run and the
// job-monitoring systems that observe it. Every failure category maps to a
// fixed small offset; adding the per-pipeline error code base yields a
// process exit code that identifies both the pipeline and the failure
// category without parsing any logs.
package errcode

import "fmt"

// Category classifies a run failure. The zero value is CategoryNone, which
// is never a valid failure category.
type Category int

const (
	CategoryNone Category = iota
	CategoryConfigInvalid
	CategoryScratchUnwritable
	CategorySASLaunchFailure
	CategorySASNonZeroExit
	CategoryOutputValidation
	CategoryMetadataGeneration
	CategoryQALaunchFailure
	CategoryQANonZeroExit
	CategoryStagingFailure
)

// offsets maps each category to its additive exit-code offset. Offsets are
// spaced by 10 to leave room for category-internal sub-codes.
var offsets = map[Category]int{
	CategoryConfigInvalid:      10,
	CategoryScratchUnwritable:  20,
	CategorySASLaunchFailure:   30,
	CategorySASNonZeroExit:     40,
	CategoryOutputValidation:   50,
	CategoryMetadataGeneration: 60,
	CategoryQALaunchFailure:    70,
	CategoryQANonZeroExit:      80,
	CategoryStagingFailure:     90,
}

// names provides the operator-facing spelling of each category, used in run
// logs and stage summaries.
var names = map[Category]string{
	CategoryNone:               "none",
	CategoryConfigInvalid:      "configuration-invalid",
	CategoryScratchUnwritable:  "scratch-unwritable",
	CategorySASLaunchFailure:   "sas-launch-failure",
	CategorySASNonZeroExit:     "sas-nonzero-exit",
	CategoryOutputValidation:   "output-validation-failure",
	CategoryMetadataGeneration: "metadata-generation-failure",
	CategoryQALaunchFailure:    "qa-launch-failure",
	CategoryQANonZeroExit:      "qa-nonzero-exit",
	CategoryStagingFailure:     "staging-failure",
}

// String implements fmt.Stringer for Category.
func (c Category) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Offset returns the category's additive exit-code offset.
func (c Category) Offset() int {
	return offsets[c]
}

// Resolve combines a pipeline's error code base with a category offset to
// produce the absolute process exit code. Pure function: same inputs always
// yield the same code.
func Resolve(pipelineBase int, category Category) int {
	return pipelineBase + offsets[category]
}

// Record captures one classified failure raised by a run stage. The first
// fatal Record in a run determines the process exit code; later stages are
// not attempted once a fatal record exists.
type Record struct {
	Category Category
	Base     int
	Message  string
	Fatal    bool
}

// NewFatal builds a fatal Record for the given pipeline base and category.
func NewFatal(base int, category Category, format string, args ...any) *Record {
	return &Record{
		Category: category,
		Base:     base,
		Message:  fmt.Sprintf(format, args...),
		Fatal:    true,
	}
}

// Error implements the error interface for Record.
func (r *Record) Error() string {
	return fmt.Sprintf("%s: %s", r.Category, r.Message)
}

// ExitCode returns the absolute process exit code encoded by the record.
func (r *Record) ExitCode() int {
	return Resolve(r.Base, r.Category)
}
