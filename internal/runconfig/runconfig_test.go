package runconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validDoc = `
RunConfig:
  Name: dswx_hls_demo
  Groups:
    PGE:
      PGENameGroup:
        PGEName: DSWX_HLS_PGE
      InputFilesGroup:
        InputFilePaths:
          - input/granule_a.tif
          - input/granule_b.tif
      DynamicAncillaryFilesGroup:
        AncillaryFileMap:
          dem_file: ancillary/dem.tif
      ProductPathGroup:
        OutputProductPath: output
        ScratchPath: scratch
      PrimaryExecutable:
        ProductIdentifier: dswx_hls
        ProgramPath: /opt/sas/dswx_hls.sh
        ProgramOptions:
          - --full-log
        ErrorCodeBase: 100000
        SchemaPath: dswx_hls_sas.yaml
      QAExecutable:
        Enabled: false
      DebugLevelGroup:
        DebugSwitch: false
        ExecuteViaShell: false
    SAS:
      runconfig:
        processing:
          check_ancillary_inputs: true
        product_flags:
          generate_browse: true
          generate_confidence: false
`

const sasSchemaDoc = `
runconfig:
  processing:
    check_ancillary_inputs: bool()
  product_flags:
    generate_browse: bool()
    generate_confidence: bool(required=False)
`

// writeWorkspace materializes a runconfig document plus its SAS schema in a
// temp directory and returns both paths.
func writeWorkspace(t *testing.T, doc string) (rcPath, schemaRoot string) {
	t.Helper()

	dir := t.TempDir()
	rcPath = filepath.Join(dir, "runconfig.yaml")
	require.NoError(t, os.WriteFile(rcPath, []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dswx_hls_sas.yaml"), []byte(sasSchemaDoc), 0o644))
	return rcPath, dir
}

func TestLoadAndValidate_ValidDocument(t *testing.T) {
	t.Parallel()

	rcPath, schemaRoot := writeWorkspace(t, validDoc)
	rc, err := Load(rcPath)
	require.NoError(t, err)
	require.NoError(t, rc.Validate(schemaRoot))

	require.Equal(t, "dswx_hls_demo", rc.Name)
	require.Equal(t, "DSWX_HLS_PGE", rc.PGE.PGEName.PGEName)
	require.Equal(t, []string{"input/granule_a.tif", "input/granule_b.tif"}, rc.PGE.InputFiles.InputFilePaths)
	require.Equal(t, "ancillary/dem.tif", rc.PGE.DynamicAncillary.AncillaryFileMap["dem_file"])
	require.Equal(t, 100000, rc.PGE.Primary.ErrorCodeBase)
	require.Equal(t, "dswx_hls", rc.PGE.Primary.ProductIdentifier)
	require.False(t, rc.PGE.QA.Enabled)
}

func TestLoad_UnreadableAndUnparsable(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{unclosed"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestValidate_EmptyInputFilePathsFailsPhaseOne(t *testing.T) {
	t.Parallel()

	doc := replaceFixture(t, validDoc,
		"        InputFilePaths:\n          - input/granule_a.tif\n          - input/granule_b.tif\n",
		"        InputFilePaths: []\n")
	rcPath, schemaRoot := writeWorkspace(t, doc)

	rc, err := Load(rcPath)
	require.NoError(t, err)

	err = rc.Validate(schemaRoot)
	require.Error(t, err)
	require.Contains(t, err.Error(), "InputFilePaths")
}

func TestValidate_SASViolationNamesFieldPath(t *testing.T) {
	t.Parallel()

	doc := replaceFixture(t, validDoc, "          check_ancillary_inputs: true\n", "          check_ancillary_inputs: maybe\n")
	rcPath, schemaRoot := writeWorkspace(t, doc)

	rc, err := Load(rcPath)
	require.NoError(t, err)

	err = rc.Validate(schemaRoot)
	require.Error(t, err)
	require.Contains(t, err.Error(), "runconfig.processing.check_ancillary_inputs")
}

func TestValidate_MissingSASSchemaFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rcPath := filepath.Join(dir, "runconfig.yaml")
	require.NoError(t, os.WriteFile(rcPath, []byte(validDoc), 0o644))

	rc, err := Load(rcPath)
	require.NoError(t, err)
	require.Error(t, rc.Validate(dir)) // schema file was never written
}

func TestWriteSASConfig_RoundTripsAndLeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	rcPath, schemaRoot := writeWorkspace(t, validDoc)
	before, err := os.ReadFile(rcPath)
	require.NoError(t, err)

	rc, err := Load(rcPath)
	require.NoError(t, err)
	require.NoError(t, rc.Validate(schemaRoot))

	outDir := t.TempDir()
	written, err := rc.WriteSASConfig(outDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "dswx_hls_demo_sas.yaml"), written)

	// The standalone document's SAS subtree equals the original, excluding
	// the added wrapper keys.
	var reparsed struct {
		RunConfig struct {
			Name   string `yaml:"Name"`
			Groups struct {
				SAS map[string]any `yaml:"SAS"`
			} `yaml:"Groups"`
		} `yaml:"RunConfig"`
	}
	raw, err := os.ReadFile(written)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(raw, &reparsed))
	require.Equal(t, "dswx_hls_demo", reparsed.RunConfig.Name)

	var original map[string]any
	require.NoError(t, rc.SASNode().Decode(&original))
	require.Equal(t, original, reparsed.RunConfig.Groups.SAS)

	// The source document on disk is byte-identical after the split.
	after, err := os.ReadFile(rcPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSASFlag(t *testing.T) {
	t.Parallel()

	rcPath, schemaRoot := writeWorkspace(t, validDoc)
	rc, err := Load(rcPath)
	require.NoError(t, err)
	require.NoError(t, rc.Validate(schemaRoot))

	require.True(t, rc.SASFlag("runconfig.product_flags.generate_browse"))
	require.False(t, rc.SASFlag("runconfig.product_flags.generate_confidence"))
	require.False(t, rc.SASFlag("runconfig.product_flags.absent"))
	require.False(t, rc.SASFlag("runconfig.processing")) // mapping, not a bool
}

// replaceFixture swaps an exact substring and fails the test if it was
// absent, guarding against fixture drift.
func replaceFixture(t *testing.T, doc, old, new string) string {
	t.Helper()
	require.Contains(t, doc, old)
	return strings.Replace(doc, old, new, 1)
}
