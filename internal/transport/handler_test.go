package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-buildbuddy/internal/config"
	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/internal/imageproc"
	"go-buildbuddy/internal/llm"
	"go-buildbuddy/internal/observer"
	"go-buildbuddy/internal/service"
	"go-buildbuddy/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 12 * 1024 * 1024,
	}
}

type testServer struct {
	handler  http.Handler
	metrics  *observer.MetricsObserver
	requests []models.AnalysisRequest
}

func newTestServer(result models.AnalysisResult) *testServer {
	ts := &testServer{metrics: observer.NewMetricsObserver()}
	events := observer.NewEventPublisher()
	events.Subscribe(ts.metrics)

	a := llm.AnalyzerFunc(func(_ context.Context, req models.AnalysisRequest) models.AnalysisResult {
		ts.requests = append(ts.requests, req)
		return result
	})
	svc := service.NewAnalysisService(imageproc.NewNormalizer(), a, nil, events)
	ts.handler = NewHandler(svc, ts.metrics, testConfig())
	return ts
}

func newUnconfiguredServer() http.Handler {
	cfgErr := apperrors.NewConfigurationError("Claude API not configured properly", llm.ErrMissingAPIKey).
		WithDetails(config.SetupInstructions)
	svc := service.NewAnalysisService(imageproc.NewNormalizer(), nil, cfgErr, nil)
	return NewHandler(svc, nil, testConfig())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a form post; a nil file omits the image part
func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "ok"})

	w := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, "1.0.0", body["version"])

	w = serve(newUnconfiguredServer(), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unconfigured", body["status"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "ok"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")

	w := serve(ts.handler, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestOptions(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{})

	w := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/api/v1/options", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body models.OptionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.AnalysisTypes, 4)
	assert.Equal(t, "General Repair", body.AnalysisTypes[0])
	assert.Equal(t, 10, body.MaxFileSizeMB)
}

func TestAnalyzeTextOnly(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "## Steps\n1. Replace the fuse"})

	req := multipartRequest(t, "/api/v1/analyze", map[string]string{
		"description":   "no power",
		"analysis_type": "troubleshooting",
		"render":        "html",
	}, "", nil)
	w := serve(ts.handler, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "## Steps\n1. Replace the fuse", body.Analysis)
	assert.Equal(t, "Troubleshooting", body.AnalysisType)
	assert.Equal(t, "buildbuddy_analysis_troubleshooting.txt", body.ExportFilename)
	assert.False(t, body.Fallback)
	assert.Contains(t, body.HTML, "<h2>Steps</h2>")
	assert.Contains(t, body.HTML, "<li>Replace the fuse</li>")
	assert.Equal(t, w.Header().Get(RequestIDHeader), body.RequestID)

	require.Len(t, ts.requests, 1)
	assert.Equal(t, "[Troubleshooting] no power", ts.requests[0].Description)
	assert.Nil(t, ts.requests[0].Image)
}

func TestAnalyzeURLEncodedForm(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "ok"})

	form := url.Values{"description": {"buzzing transformer"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(ts.handler, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "General Repair", body.AnalysisType)
	assert.Empty(t, body.HTML)
	require.Len(t, ts.requests, 1)
	assert.Equal(t, "buzzing transformer", ts.requests[0].Description)
}

func TestAnalyzeWithImage(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "Check C12."})

	req := multipartRequest(t, "/api/v1/analyze", map[string]string{
		"analysis_type": "Component Analysis",
	}, "board.png", pngBytes(t, 64, 48))
	w := serve(ts.handler, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Image)
	assert.Equal(t, "jpeg", body.Image.Format)
	assert.Equal(t, 64, body.Image.Width)
	assert.Equal(t, 48, body.Image.Height)

	require.Len(t, ts.requests, 1)
	require.NotNil(t, ts.requests[0].Image)
	assert.Equal(t, "[Component Analysis] ", ts.requests[0].Description)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]string
		filename    string
		file        []byte
		wantStatus  int
		wantType    string
		wantMessage string
	}{
		{
			name:        "empty submission",
			fields:      map[string]string{"description": "  "},
			wantStatus:  http.StatusBadRequest,
			wantType:    "validation",
			wantMessage: service.EmptySubmissionMessage,
		},
		{
			name:        "unknown analysis type",
			fields:      map[string]string{"description": "x", "analysis_type": "astrology"},
			wantStatus:  http.StatusBadRequest,
			wantType:    "validation",
			wantMessage: `unknown analysis type "astrology"`,
		},
		{
			name:        "unsupported format",
			filename:    "scan.gif",
			file:        []byte("GIF89a"),
			wantStatus:  http.StatusBadRequest,
			wantType:    "validation",
			wantMessage: "Unsupported format. Supported: jpg, jpeg, png, webp",
		},
		{
			name:        "corrupt image",
			filename:    "board.jpg",
			file:        []byte("definitely not a jpeg"),
			wantStatus:  http.StatusUnprocessableEntity,
			wantType:    "processing",
			wantMessage: service.ImageFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(models.AnalysisResult{Text: "unused"})

			w := serve(ts.handler, multipartRequest(t, "/api/v1/analyze", tt.fields, tt.filename, tt.file))
			assert.Equal(t, tt.wantStatus, w.Code)

			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body.Type)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Empty(t, ts.requests)
		})
	}
}

func TestAnalyzeFallback(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{
		Text:      llm.FallbackText,
		Fallback:  true,
		ErrorKind: models.ErrorKindNetwork,
		Notice:    "Error communicating with Claude API: dial tcp: refused",
	})

	w := serve(ts.handler, multipartRequest(t, "/api/v1/analyze", map[string]string{"description": "smoke"}, "", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Fallback)
	assert.Equal(t, llm.FallbackText, body.Analysis)
	assert.Contains(t, body.Notice, "Error communicating with Claude API")
}

func TestAnalyzeUnconfigured(t *testing.T) {
	w := serve(newUnconfiguredServer(),
		multipartRequest(t, "/api/v1/analyze", map[string]string{"description": "smoke"}, "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "configuration", body.Type)
	assert.Equal(t, "Claude API not configured properly", body.Message)
	assert.Contains(t, body.Details, "ANTHROPIC_API_KEY")
}

func TestExportAnalysis(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "# Report\nUse flux."})

	req := multipartRequest(t, "/api/v1/analyze/export", map[string]string{
		"description":   "cold joints",
		"analysis_type": "design_review",
	}, "", nil)
	w := serve(ts.handler, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="buildbuddy_analysis_design_review.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "# Report\nUse flux.", w.Body.String())
}

func TestInspectImage(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{})

	w := serve(ts.handler, multipartRequest(t, "/api/v1/images/inspect", nil, "board.png", pngBytes(t, 20, 10)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info models.ImageInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "board.png", info.Filename)
	assert.Equal(t, "PNG", info.Format)
	assert.Equal(t, 20, info.Width)
	assert.Equal(t, 10, info.Height)

	w = serve(ts.handler, multipartRequest(t, "/api/v1/images/inspect", nil, "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.requests)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "ok"})
	serve(ts.handler, multipartRequest(t, "/api/v1/analyze", map[string]string{"description": "hum"}, "", nil))
	serve(ts.handler, multipartRequest(t, "/api/v1/analyze", map[string]string{}, "", nil))

	w := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var m observer.Metrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, int64(1), m.TotalAnalyses)
	assert.Equal(t, int64(1), m.SuccessfulAnalyses)
	assert.Equal(t, int64(1), m.RejectedSubmissions)
}

func TestDetermineStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, determineStatusCode(context.DeadlineExceeded))
	assert.Equal(t, statusClientClosedRequest, determineStatusCode(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, determineStatusCode(assert.AnError))
	assert.Equal(t, http.StatusServiceUnavailable,
		determineStatusCode(apperrors.NewConfigurationError("x", nil)))
}

func TestClientClosedRequestResponse(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)

	respondAppError(c, "analysis failed", fmt.Errorf("call: %w", context.Canceled))

	assert.Equal(t, 499, w.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Client Closed Request", body.Error)
}

func TestUploadError(t *testing.T) {
	deadline := &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}

	tests := []struct {
		name       string
		err        error
		wantType   apperrors.ErrorType
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "body too large",
			err:        &http.MaxBytesError{Limit: 1024},
			wantType:   apperrors.ErrorTypeValidation,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Request body exceeds 1024 bytes",
		},
		{
			name:       "read deadline while parsing",
			err:        fmt.Errorf("multipart: NextPart: %w", deadline),
			wantType:   apperrors.ErrorTypeTimeout,
			wantStatus: http.StatusRequestTimeout,
			wantMsg:    "Timed out reading the upload",
		},
		{
			name:       "malformed form",
			err:        io.ErrUnexpectedEOF,
			wantType:   apperrors.ErrorTypeValidation,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid multipart form",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr, ok := apperrors.As(uploadError(tt.err, "Invalid multipart form"))
			require.True(t, ok)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
			assert.Equal(t, tt.wantMsg, appErr.Message)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}

// timeoutReader fails the way a connection does once its read deadline passes
type timeoutReader struct{}

func (timeoutReader) Read([]byte) (int, error) {
	return 0, &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}
}

func TestAnalyzeUploadTimeout(t *testing.T) {
	ts := newTestServer(models.AnalysisResult{Text: "unused"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", timeoutReader{})
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	w := serve(ts.handler, req)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(apperrors.ErrorTypeTimeout), body.Type)
	assert.Equal(t, "Timed out reading the upload", body.Message)
	assert.Empty(t, ts.requests)
}
