package models

// UploadedImage is a file as received from the user
// Data is the raw file content; Size is the size the client declared
type UploadedImage struct {
	Filename string
	Data     []byte
	Size     int64
}

// NormalizedImage is an upload re-encoded to a bounded-resolution JPEG
type NormalizedImage struct {
	Data    []byte        `json:"-"`
	Format  string        `json:"format"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Quality *PhotoQuality `json:"quality,omitempty"`
}

// PhotoQuality holds photo hints measured on the normalized image
type PhotoQuality struct {
	Sharpness  float64        `json:"sharpness"`
	Brightness float64        `json:"brightness"`
	Issues     []QualityIssue `json:"issues,omitempty"`
}

// QualityIssue is one thing the user could fix by retaking the photo
type QualityIssue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MediaType returns the MIME type matching Format
func (n *NormalizedImage) MediaType() string {
	return "image/" + n.Format
}

// ImageInfo describes an upload without transforming it
type ImageInfo struct {
	Filename   string  `json:"filename"`
	Format     string  `json:"format"`
	Mode       string  `json:"mode"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FileSizeKB float64 `json:"file_size_kb"`
}

// AnalysisRequest is what gets sent to the model for one submission
type AnalysisRequest struct {
	Description  string
	Image        *NormalizedImage
	SystemPrompt string
}

// ErrorKind classifies why an analysis fell back
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindNetwork       ErrorKind = "network"
	ErrorKindUpstream      ErrorKind = "upstream"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindEmptyResponse ErrorKind = "empty_response"
)

// AnalysisResult is the model's markdown answer or the fallback string.
// ErrorKind and Notice never alter Text.
type AnalysisResult struct {
	Text      string    `json:"text"`
	Fallback  bool      `json:"fallback"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Notice    string    `json:"notice,omitempty"`
}
