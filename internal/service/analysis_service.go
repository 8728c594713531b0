package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/internal/imageproc"
	"go-buildbuddy/internal/llm"
	"go-buildbuddy/internal/logger"
	"go-buildbuddy/internal/observer"
	"go-buildbuddy/internal/prompts"
	"go-buildbuddy/pkg/models"
	"go-buildbuddy/pkg/validation"
)

const (
	// EmptySubmissionMessage is shown when neither an image nor text was given
	EmptySubmissionMessage = "Please upload an image or describe your problem to get started."
	// ImageFailureMessage is shown when an upload cannot be normalized
	ImageFailureMessage = "Failed to process the uploaded image. Please try again."
)

// Submission is one user request as collected by a front end
type Submission struct {
	Image        *models.UploadedImage
	Description  string
	AnalysisType prompts.AnalysisType
}

// Analysis is the outcome of a submission that reached the model
type Analysis struct {
	Result         models.AnalysisResult
	AnalysisType   prompts.AnalysisType
	ExportFilename string
	Image          *models.NormalizedImage
}

// AnalysisService defines the hardware analysis workflow
type AnalysisService interface {
	Analyze(ctx context.Context, sub Submission) (*Analysis, error)
	Inspect(ctx context.Context, upload *models.UploadedImage) (*models.ImageInfo, error)
	Options() models.OptionsResponse
	Ready() error
}

type analysisService struct {
	normalizer imageproc.Normalizer
	analyzer   llm.Analyzer
	configErr  error
	events     observer.Subject

	// one remote call in flight at a time
	callMu sync.Mutex
}

// NewAnalysisService creates the service. When analyzer is nil, configErr is
// returned from every Analyze call and Ready.
func NewAnalysisService(
	normalizer imageproc.Normalizer,
	analyzer llm.Analyzer,
	configErr error,
	events observer.Subject,
) AnalysisService {
	if analyzer == nil && configErr == nil {
		configErr = apperrors.NewConfigurationError("Claude API not configured properly", nil)
	}
	if events == nil {
		events = observer.NewEventPublisher()
	}
	return &analysisService{
		normalizer: normalizer,
		analyzer:   analyzer,
		configErr:  configErr,
		events:     events,
	}
}

// Ready reports the configuration error that blocks analysis, if any
func (s *analysisService) Ready() error {
	if s.analyzer == nil {
		return s.configErr
	}
	return nil
}

// Analyze rejects empty submissions, normalizes the image, picks the prompt
// and calls the model. Model failures come back as fallback results, not
// errors.
func (s *analysisService) Analyze(ctx context.Context, sub Submission) (*Analysis, error) {
	analysisType := sub.AnalysisType
	if analysisType == "" {
		analysisType = prompts.GeneralRepair
	}
	hasImage := sub.Image != nil

	log := logger.G(ctx).WithFields(logrus.Fields{
		"analysis_type": analysisType,
		"has_image":     hasImage,
	})

	if !hasImage && strings.TrimSpace(sub.Description) == "" {
		err := apperrors.NewValidationError(EmptySubmissionMessage, nil)
		s.publish(ctx, observer.AnalysisRejected, analysisType, hasImage, 0, err)
		return nil, err
	}

	if err := s.Ready(); err != nil {
		s.publish(ctx, observer.AnalysisRejected, analysisType, hasImage, 0, err)
		return nil, err
	}

	var normalized *models.NormalizedImage
	if hasImage {
		img, err := s.normalizer.Normalize(sub.Image)
		if err != nil {
			log.WithError(err).Warn("Image normalization failed")
			err = imageFailure(err)
			s.publish(ctx, observer.AnalysisRejected, analysisType, hasImage, 0, err)
			return nil, err
		}
		normalized = img
		s.publishImage(ctx, analysisType, img)
	}

	req := models.AnalysisRequest{
		Description:  prompts.Describe(analysisType, sub.Description),
		Image:        normalized,
		SystemPrompt: prompts.SystemPrompt(normalized != nil),
	}

	s.publish(ctx, observer.AnalysisStarted, analysisType, hasImage, 0, nil)
	start := time.Now()
	result := s.call(ctx, req)
	elapsed := time.Since(start)

	if result.Fallback {
		s.publishResult(ctx, observer.AnalysisFallback, analysisType, hasImage, elapsed, result)
	} else {
		s.publishResult(ctx, observer.AnalysisCompleted, analysisType, hasImage, elapsed, result)
	}

	return &Analysis{
		Result:         result,
		AnalysisType:   analysisType,
		ExportFilename: prompts.ExportFilename(analysisType),
		Image:          normalized,
	}, nil
}

func (s *analysisService) call(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	return s.analyzer.Analyze(ctx, req)
}

// Inspect reports image metadata without normalizing it
func (s *analysisService) Inspect(ctx context.Context, upload *models.UploadedImage) (*models.ImageInfo, error) {
	info, err := s.normalizer.Inspect(upload)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("Image inspection failed")
		return nil, err
	}
	return info, nil
}

// Options lists what a front end may offer the user
func (s *analysisService) Options() models.OptionsResponse {
	types := make([]string, 0, len(prompts.AnalysisTypes))
	for _, t := range prompts.AnalysisTypes {
		types = append(types, string(t))
	}
	return models.OptionsResponse{
		AnalysisTypes:    types,
		SupportedFormats: append([]string(nil), validation.SupportedFormats...),
		MaxFileSizeMB:    validation.MaxFileSizeMB,
		MaxResolution:    validation.MaxResolution,
	}
}

// imageFailure keeps validation messages and replaces everything else with
// the generic image failure message.
func imageFailure(err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		return err
	}
	return apperrors.NewProcessingError(ImageFailureMessage, err)
}

func (s *analysisService) publish(ctx context.Context, eventType observer.EventType, t prompts.AnalysisType, hasImage bool, elapsed time.Duration, err error) {
	event := observer.AnalysisEvent{
		ID:             uuid.NewString(),
		EventType:      eventType,
		Timestamp:      time.Now(),
		AnalysisType:   string(t),
		HasImage:       hasImage,
		ProcessingTime: elapsed,
		Success:        err == nil,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	s.events.NotifyObservers(ctx, event)
}

func (s *analysisService) publishImage(ctx context.Context, t prompts.AnalysisType, img *models.NormalizedImage) {
	metadata := map[string]interface{}{
		"width":  img.Width,
		"height": img.Height,
		"bytes":  len(img.Data),
	}
	if img.Quality != nil && len(img.Quality.Issues) > 0 {
		issues := make([]string, 0, len(img.Quality.Issues))
		for _, issue := range img.Quality.Issues {
			issues = append(issues, issue.Type)
		}
		metadata["quality_issues"] = issues
	}

	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		ID:           uuid.NewString(),
		EventType:    observer.ImageNormalized,
		Timestamp:    time.Now(),
		AnalysisType: string(t),
		HasImage:     true,
		Success:      true,
		Metadata:     metadata,
	})
}

func (s *analysisService) publishResult(ctx context.Context, eventType observer.EventType, t prompts.AnalysisType, hasImage bool, elapsed time.Duration, result models.AnalysisResult) {
	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		ID:             uuid.NewString(),
		EventType:      eventType,
		Timestamp:      time.Now(),
		AnalysisType:   string(t),
		HasImage:       hasImage,
		ProcessingTime: elapsed,
		Success:        !result.Fallback,
		ErrorKind:      string(result.ErrorKind),
		ErrorMessage:   result.Notice,
	})
}
