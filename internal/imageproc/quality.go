package imageproc

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"go-buildbuddy/pkg/models"
)

// QualityThresholds bounds what counts as a usable hardware photo
type QualityThresholds struct {
	// Laplacian variance below this reads as out of focus
	MinSharpness float64
	// Mean gray level, 0-255
	MinBrightness float64
	MaxBrightness float64
	// Shorter side in pixels
	MinShortSide int
}

// DefaultQualityThresholds returns the thresholds used for photo hints
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinSharpness:  100.0,
		MinBrightness: 60.0,
		MaxBrightness: 220.0,
		MinShortSide:  480,
	}
}

// Issue types reported in PhotoQuality
const (
	IssueBlurry        = "blurry"
	IssueTooDark       = "too_dark"
	IssueOverexposed   = "overexposed"
	IssueLowResolution = "low_resolution"
)

// qualitySampleSide caps the grayscale copy the metrics are computed on
const qualitySampleSide = 1024

// AssessQuality measures sharpness and brightness of img and lists what a
// user could fix by retaking the photo. It never rejects an image.
func AssessQuality(img image.Image, t QualityThresholds) *models.PhotoQuality {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return &models.PhotoQuality{}
	}

	gray := grayscale(img, qualitySampleSide)
	q := &models.PhotoQuality{
		Sharpness:  round2(laplacianVariance(gray)),
		Brightness: round2(meanBrightness(gray)),
	}

	if gray.Bounds().Dx() >= 3 && gray.Bounds().Dy() >= 3 && q.Sharpness < t.MinSharpness {
		q.Issues = append(q.Issues, models.QualityIssue{
			Type:    IssueBlurry,
			Message: "Photo looks out of focus. Hold the camera steady and focus on the board.",
		})
	}
	switch {
	case q.Brightness < t.MinBrightness:
		q.Issues = append(q.Issues, models.QualityIssue{
			Type:    IssueTooDark,
			Message: "Photo is too dark. Add light so components and markings are visible.",
		})
	case q.Brightness > t.MaxBrightness:
		q.Issues = append(q.Issues, models.QualityIssue{
			Type:    IssueOverexposed,
			Message: "Photo is overexposed. Reduce glare or move away from direct light.",
		})
	}
	if min(b.Dx(), b.Dy()) < t.MinShortSide {
		q.Issues = append(q.Issues, models.QualityIssue{
			Type:    IssueLowResolution,
			Message: "Photo resolution is low. Move closer so part numbers are readable.",
		})
	}

	return q
}

// grayscale returns a gray copy of img scaled down to at most limit per side
func grayscale(img image.Image, limit int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > limit || h > limit {
		scale := math.Min(float64(limit)/float64(w), float64(limit)/float64(h))
		w = clamp(int(math.Round(float64(w)*scale)), 1, limit)
		h = clamp(int(math.Round(float64(h)*scale)), 1, limit)
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
		return gray
	}
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray
}

// laplacianVariance applies the [0 1 0; 1 -4 1; 0 1 0] kernel and returns
// the variance of the response. Sharp edges give large values.
func laplacianVariance(gray *image.Gray) float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w < 3 || h < 3 {
		return 0
	}

	data := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}

func meanBrightness(gray *image.Gray) float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	values := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			values = append(values, float64(v))
		}
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
