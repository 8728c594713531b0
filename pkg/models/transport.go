package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// AnalysisResponse is returned by the analyze endpoint
type AnalysisResponse struct {
	Analysis       string           `json:"analysis"`
	HTML           string           `json:"html,omitempty"`
	AnalysisType   string           `json:"analysis_type"`
	ExportFilename string           `json:"export_filename"`
	Fallback       bool             `json:"fallback"`
	Notice         string           `json:"notice,omitempty"`
	Image          *NormalizedImage `json:"image,omitempty"`
	RequestID      string           `json:"request_id,omitempty"`
}

// OptionsResponse lists the choices a client can offer its users
type OptionsResponse struct {
	AnalysisTypes    []string `json:"analysis_types"`
	SupportedFormats []string `json:"supported_formats"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
	MaxResolution    int      `json:"max_resolution"`
}
