package errcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var allCategories = []Category{
	CategoryConfigInvalid,
	CategoryScratchUnwritable,
	CategorySASLaunchFailure,
	CategorySASNonZeroExit,
	CategoryOutputValidation,
	CategoryMetadataGeneration,
	CategoryQALaunchFailure,
	CategoryQANonZeroExit,
	CategoryStagingFailure,
}

func TestResolve_OffsetsArePairwiseDistinct(t *testing.T) {
	t.Parallel()

	const base = 100000
	seen := make(map[int]Category)
	for _, cat := range allCategories {
		code := Resolve(base, cat)
		prev, dup := seen[code]
		require.Falsef(t, dup, "categories %s and %s collide on exit code %d", prev, cat, code)
		seen[code] = cat
	}
}

func TestResolve_OffsetsAreSpacedByAtLeastTen(t *testing.T) {
	t.Parallel()

	for i, a := range allCategories {
		for _, b := range allCategories[i+1:] {
			diff := a.Offset() - b.Offset()
			if diff < 0 {
				diff = -diff
			}
			require.GreaterOrEqualf(t, diff, 10, "offsets for %s and %s are closer than 10", a, b)
		}
	}
}

func TestResolve_PipelineBasesShiftCodesExactly(t *testing.T) {
	t.Parallel()

	// Two pipelines with the same failure category must produce exit codes
	// that differ by exactly the difference of their bases.
	for _, cat := range allCategories {
		require.Equal(t, 200000, Resolve(300000, cat)-Resolve(100000, cat))
	}
}

func TestRecord_ExitCodeAndError(t *testing.T) {
	t.Parallel()

	rec := NewFatal(200000, CategorySASNonZeroExit, "SAS exited with code %d", 123)
	require.True(t, rec.Fatal)
	require.Equal(t, 200040, rec.ExitCode())
	require.EqualError(t, rec, "sas-nonzero-exit: SAS exited with code 123")
}
