// Package imageproc turns user uploads into model-ready JPEG images.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/pkg/models"
	"go-buildbuddy/pkg/validation"
)

const (
	// OutputFormat is the tag attached to every normalized image
	OutputFormat = "jpeg"
	// JPEGQuality is the encoder quality used for normalized output
	JPEGQuality = 85
)

// Normalizer validates uploads and re-encodes them for the model
type Normalizer interface {
	Validate(upload *models.UploadedImage) error
	Normalize(upload *models.UploadedImage) (*models.NormalizedImage, error)
	Inspect(upload *models.UploadedImage) (*models.ImageInfo, error)
}

type normalizer struct {
	validator     *validation.UploadValidator
	maxResolution int
	quality       int
	thresholds    QualityThresholds
}

// NewNormalizer creates a normalizer with the default limits
func NewNormalizer() Normalizer {
	return &normalizer{
		validator:     validation.NewUploadValidator(),
		maxResolution: validation.MaxResolution,
		quality:       JPEGQuality,
		thresholds:    DefaultQualityThresholds(),
	}
}

func (n *normalizer) Validate(upload *models.UploadedImage) error {
	return n.validator.ValidateUpload(upload)
}

// Normalize validates the upload, flattens transparency onto white, bounds
// the resolution and encodes the result as JPEG. Nothing touches disk.
func (n *normalizer) Normalize(upload *models.UploadedImage) (*models.NormalizedImage, error) {
	if err := n.Validate(upload); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, processingError(errors.Wrap(err, "failed to decode image"))
	}

	rgb := fit(flatten(img), n.maxResolution)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, processingError(errors.Wrap(err, "failed to encode jpeg"))
	}

	bounds := rgb.Bounds()
	return &models.NormalizedImage{
		Data:    buf.Bytes(),
		Format:  OutputFormat,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Quality: AssessQuality(rgb, n.thresholds),
	}, nil
}

// Inspect reads the image header and reports what was uploaded
func (n *normalizer) Inspect(upload *models.UploadedImage) (*models.ImageInfo, error) {
	if upload == nil {
		return nil, apperrors.NewValidationError("No file uploaded", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, apperrors.NewProcessingError("Could not read image information", err)
	}

	return &models.ImageInfo{
		Filename:   upload.Filename,
		Format:     strings.ToUpper(format),
		Mode:       colorMode(cfg.ColorModel),
		Width:      cfg.Width,
		Height:     cfg.Height,
		FileSizeKB: math.Round(float64(upload.Size)/1024*100) / 100,
	}, nil
}

func processingError(err error) error {
	return apperrors.NewProcessingError(fmt.Sprintf("Error processing image: %v", err), err)
}

// flatten returns an 8-bit RGB(A) copy of img anchored at the origin.
// Non-opaque images are composited onto white using their alpha as the mask.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if hasAlpha(img) {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	}

	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// fit downscales img so neither side exceeds limit, keeping the aspect ratio
func fit(img *image.RGBA, limit int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= limit && h <= limit {
		return img
	}

	scale := math.Min(float64(limit)/float64(w), float64(limit)/float64(h))
	nw := clamp(int(math.Round(float64(w)*scale)), 1, limit)
	nh := clamp(int(math.Round(float64(h)*scale)), 1, limit)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// colorMode names a color model the way image tools usually report it
func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.NYCbCrAModel:
		return "RGBA"
	case color.CMYKModel:
		return "CMYK"
	default:
		return "RGB"
	}
}
