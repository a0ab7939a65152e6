package domain

// FileType represents the document types the pipeline accepts.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeWEBP FileType = "webp"
	FileTypeGIF  FileType = "gif"
)

// AllowedContentTypes maps sniffed MIME content types to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
	"image/webp":      FileTypeWEBP,
	"image/gif":       FileTypeGIF,
}

// IsImage reports whether the file type is a single-page raster image.
func (f FileType) IsImage() bool {
	return f != FileTypePDF && f != ""
}

// Mode is the document classification that selects the prompt and schema family.
type Mode string

const (
	ModeLabResults    Mode = "lab_results"
	ModeClinicalNotes Mode = "clinical_notes"
	ModeImagingReport Mode = "imaging_report"
)

// ContainerKey returns the top-level JSON key the model must answer under.
func (m Mode) ContainerKey() string {
	if m == ModeImagingReport {
		return "imaging_report"
	}
	return "test_result"
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeLabResults, ModeClinicalNotes, ModeImagingReport:
		return true
	}
	return false
}

// Pass identifies one modality configuration of an extraction run.
type Pass string

const (
	PassTotal     Pass = "total"
	PassTextOnly  Pass = "text_only"
	PassImageOnly Pass = "image_only"
)

// AllPasses lists the passes in merge priority order.
var AllPasses = []Pass{PassTotal, PassTextOnly, PassImageOnly}

// ExcludeImage reports whether the pass runs without the page image.
func (p Pass) ExcludeImage() bool { return p == PassTextOnly }

// ExcludeText reports whether the pass runs without the page markdown.
func (p Pass) ExcludeText() bool { return p == PassImageOnly }

// DeploymentEnv selects which parser backends are enabled.
type DeploymentEnv string

const (
	DeploymentLocal DeploymentEnv = "local"
	DeploymentCloud DeploymentEnv = "cloud"
)

// ParserKind distinguishes vision-language backends from document converters.
type ParserKind string

const (
	ParserKindVision   ParserKind = "vision"
	ParserKindDocument ParserKind = "document"
)
