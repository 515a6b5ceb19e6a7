package model

// AnalysisStatus is the outcome of one forensic sub-analysis.
type AnalysisStatus string

const (
	// AnalysisOK means the tool ran and its output was parsed.
	AnalysisOK AnalysisStatus = "ok"
	// AnalysisError means the tool failed or produced unusable output.
	AnalysisError AnalysisStatus = "error"
	// AnalysisNotInstalled means the tool binary was not found.
	AnalysisNotInstalled AnalysisStatus = "not_installed"
	// AnalysisTimeout means the tool exceeded its wall-clock budget.
	AnalysisTimeout AnalysisStatus = "timeout"
)

// MalwareScanStatus is the verdict of the malware engine.
type MalwareScanStatus string

const (
	// MalwareClean means the engine ran and found nothing.
	MalwareClean MalwareScanStatus = "clean"
	// MalwareInfected means the engine reported at least one detection.
	MalwareInfected MalwareScanStatus = "infected"
	// MalwareError means the engine ran but its result is not trustworthy.
	MalwareError MalwareScanStatus = "error"
	// MalwareNotInstalled means no engine binary was available.
	MalwareNotInstalled MalwareScanStatus = "not_installed"
)

// MalwareHit is a single detection reported by the malware engine.
type MalwareHit struct {
	File   string `json:"file" bson:"file"`
	Threat string `json:"threat" bson:"threat"`
}

// MetadataSection holds filtered file metadata.
type MetadataSection struct {
	Status AnalysisStatus    `json:"status" bson:"status"`
	Source string            `json:"source,omitempty" bson:"source,omitempty"`
	Fields map[string]string `json:"fields,omitempty" bson:"fields,omitempty"`
	Error  string            `json:"error,omitempty" bson:"error,omitempty"`
}

// StringsSection summarises printable strings found in a file.
type StringsSection struct {
	Status AnalysisStatus `json:"status" bson:"status"`
	Count  int            `json:"count" bson:"count"`
	Sample []string       `json:"sample,omitempty" bson:"sample,omitempty"`
	Error  string         `json:"error,omitempty" bson:"error,omitempty"`
}

// SignaturesSection lists embedded file signatures.
type SignaturesSection struct {
	Status     AnalysisStatus `json:"status" bson:"status"`
	Signatures []string       `json:"signatures,omitempty" bson:"signatures,omitempty"`
	Error      string         `json:"error,omitempty" bson:"error,omitempty"`
}

// MalwareSection is the malware engine verdict for one file.
type MalwareSection struct {
	Status   MalwareScanStatus `json:"status" bson:"status"`
	Detected bool              `json:"detected" bson:"detected"`
	Threats  []MalwareHit      `json:"threats,omitempty" bson:"threats,omitempty"`
	Error    string            `json:"error,omitempty" bson:"error,omitempty"`
}

// FileReport is the unified forensic report for one downloaded file.
type FileReport struct {
	FileURL     string `json:"file_url" bson:"file_url"`
	FileName    string `json:"file_name" bson:"file_name"`
	FileSize    int64  `json:"file_size" bson:"file_size"`
	FileHash    string `json:"file_hash" bson:"file_hash"`
	ContentType string `json:"content_type,omitempty" bson:"content_type,omitempty"`

	Metadata   MetadataSection   `json:"metadata" bson:"metadata"`
	Strings    StringsSection    `json:"strings" bson:"strings"`
	Signatures SignaturesSection `json:"signatures" bson:"signatures"`
	Malware    MalwareSection    `json:"malware" bson:"malware"`
}
