package runconfig

// PGEGroup is the decoded PGE-facing half of a RunConfig. Its sub-groups are
// fixed across all pipelines and validated by the embedded schema before
// decoding, so the structs carry no validation tags of their own.
type PGEGroup struct {
	PGEName          PGENameGroup               `yaml:"PGENameGroup"`
	InputFiles       InputFilesGroup            `yaml:"InputFilesGroup"`
	DynamicAncillary DynamicAncillaryFilesGroup `yaml:"DynamicAncillaryFilesGroup"`
	ProductPath      ProductPathGroup           `yaml:"ProductPathGroup"`
	Primary          PrimaryExecutable          `yaml:"PrimaryExecutable"`
	QA               QAExecutable               `yaml:"QAExecutable"`
	Staging          StagingGroup               `yaml:"StagingGroup"`
	Debug            DebugLevelGroup            `yaml:"DebugLevelGroup"`
}

// PGENameGroup names the wrapper itself, independent of the SAS product.
type PGENameGroup struct {
	PGEName string `yaml:"PGEName"`
}

// InputFilesGroup lists the primary input files handed to the SAS process.
type InputFilesGroup struct {
	InputFilePaths []string `yaml:"InputFilePaths"`
}

// DynamicAncillaryFilesGroup maps ancillary input roles (DEM, land cover,
// water mask, ...) to file paths. Contents are pipeline-specific and opaque
// to the wrapper.
type DynamicAncillaryFilesGroup struct {
	AncillaryFileMap map[string]string `yaml:"AncillaryFileMap"`
}

// ProductPathGroup holds the run's writable directories.
type ProductPathGroup struct {
	OutputProductPath string `yaml:"OutputProductPath"`
	ScratchPath       string `yaml:"ScratchPath"`
}

// PrimaryExecutable identifies the SAS binary and the pipeline it belongs to.
// SchemaPath points at the pipeline-specific SAS schema; the path indirection
// is resolved only after this group has itself been validated.
type PrimaryExecutable struct {
	ProductIdentifier string   `yaml:"ProductIdentifier"`
	ProgramPath       string   `yaml:"ProgramPath"`
	ProgramOptions    []string `yaml:"ProgramOptions"`
	ErrorCodeBase     int      `yaml:"ErrorCodeBase"`
	SchemaPath        string   `yaml:"SchemaPath"`
}

// QAExecutable configures the optional quality-assurance program run after a
// successful SAS run.
type QAExecutable struct {
	Enabled        bool     `yaml:"Enabled"`
	ProgramPath    string   `yaml:"ProgramPath"`
	ProgramOptions []string `yaml:"ProgramOptions"`
}

// StagingGroup configures optional delivery of finished products to an
// S3-compatible object store. Credentials come from the environment, never
// from the runconfig.
type StagingGroup struct {
	Enabled  bool   `yaml:"Enabled"`
	Endpoint string `yaml:"Endpoint"`
	Bucket   string `yaml:"Bucket"`
	Prefix   string `yaml:"Prefix"`
	UseSSL   bool   `yaml:"UseSSL"`
}

// DebugLevelGroup carries debug toggles. ExecuteViaShell switches SAS
// invocation from argv exec to a shell command line and is reserved for
// declared test and debug configurations.
type DebugLevelGroup struct {
	DebugSwitch     bool `yaml:"DebugSwitch"`
	ExecuteViaShell bool `yaml:"ExecuteViaShell"`
}
