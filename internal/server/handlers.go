package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"curestat/internal/logger"
	"curestat/internal/ocr"
	"curestat/internal/report"
	"curestat/internal/trends"
)

// TrendSource returns the aggregated trend list.
type TrendSource interface {
	Trends(ctx context.Context) ([]trends.OutbreakRecord, error)
}

// TrendSnapshot returns the last cached aggregation, if any.
type TrendSnapshot interface {
	Snapshot() ([]trends.OutbreakRecord, time.Time, bool)
}

// ReportAnalyzer analyzes report images and text.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, image io.Reader) (*report.Result, error)
	AnalyzeText(text string) *report.Result
}

type errorResponse struct {
	Error string `json:"error"`
}

type analyzeTextRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiseaseTrends(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	if s.snapshot != nil {
		if records, updatedAt, ok := s.snapshot.Snapshot(); ok {
			c.Response().Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
			return c.JSON(http.StatusOK, trends.Top(records, limit))
		}
	}

	if s.trends == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "trend source not configured")
	}

	records, err := s.trends.Trends(c.Request().Context())
	if err != nil {
		return trendHTTPError(err)
	}
	return c.JSON(http.StatusOK, trends.Top(records, limit))
}

func (s *Server) handleAnalyzeReport(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			return he
		case errors.Is(err, http.ErrMissingFile) && hasFormValue(c.Request(), "file"):
			// A file input submitted without a selection arrives as a plain value.
			return echo.NewHTTPError(http.StatusBadRequest, "No file selected for uploading")
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return echo.NewHTTPError(http.StatusBadRequest, "No file part in the request")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "Malformed multipart request").SetInternal(err)
		}
	}
	if file.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No file selected for uploading")
	}

	rid, _ := c.Get(requestIDKey).(string)
	log := logger.WithRequestID(rid)
	log.Debug().
		Str("filename", file.Filename).
		Int64("size", file.Size).
		Msg("Received report upload")

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded file").SetInternal(err)
	}
	defer src.Close()

	result, err := s.reports.Analyze(c.Request().Context(), src)
	if err != nil {
		return ocrHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleAnalyzeText(c echo.Context) error {
	var req analyzeTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Request body must be JSON with a text field").SetInternal(err)
	}
	if req.Text == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing text field")
	}
	return c.JSON(http.StatusOK, s.reports.AnalyzeText(*req.Text))
}

func hasFormValue(r *http.Request, name string) bool {
	if r.MultipartForm == nil {
		return false
	}
	_, ok := r.MultipartForm.Value[name]
	return ok
}

func trendHTTPError(err error) error {
	switch {
	case errors.Is(err, trends.ErrSourceUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "Trend source unavailable").SetInternal(err)
	case errors.Is(err, trends.ErrNumericCoercion),
		errors.Is(err, trends.ErrMissingField),
		errors.Is(err, trends.ErrMalformedPayload):
		return echo.NewHTTPError(http.StatusBadGateway, "Trend source returned invalid data: "+err.Error()).SetInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "Trend source timed out").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "An error occurred while loading trends").SetInternal(err)
	}
}

func ocrHTTPError(err error) error {
	switch {
	case errors.Is(err, ocr.ErrUnsupportedImage), errors.Is(err, ocr.ErrEmptyImage):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Unsupported or unreadable image; use PNG, JPEG or GIF").SetInternal(err)
	case errors.Is(err, ocr.ErrImageTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Image exceeds the 20MB limit").SetInternal(err)
	case errors.Is(err, ocr.ErrInvalidConfiguration), errors.Is(err, ocr.ErrMissingCredentials):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "OCR backend not configured").SetInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "Text extraction timed out").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "Text extraction failed").SetInternal(err)
	}
}

// errorHandler renders errors as {"error": "..."}.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to write error response")
	}
}
