// Package llm sends analysis requests to the hosted model.
package llm

import (
	"context"

	"go-buildbuddy/pkg/models"
)

const (
	// Temperature used for every analysis
	Temperature = 0.3
	// MaxTokens caps the length of an analysis
	MaxTokens = 4000

	// FallbackText replaces the model answer whenever the call fails
	FallbackText = "Sorry, I encountered an error while analyzing your hardware. Please try again."
	// DefaultUserText is sent when there is neither a description nor an image
	DefaultUserText = "Please provide general hardware troubleshooting advice."
)

// Analyzer asks the model about one hardware problem. Implementations never
// return an error: failures come back as a fallback AnalysisResult.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult
}

// AnalyzerFunc adapts a function to the Analyzer interface
type AnalyzerFunc func(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult

func (f AnalyzerFunc) Analyze(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult {
	return f(ctx, req)
}
