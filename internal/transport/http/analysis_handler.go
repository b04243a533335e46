// Package http exposes the analysis pipeline to the presentation layer
// as a JSON API. The dashboard itself (charts, widgets, progress bars)
// lives elsewhere; this is the boundary it talks to.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"trafficlens/internal/dataprocessing"
	apierrors "trafficlens/internal/errors"
	"trafficlens/internal/exporter"
	"trafficlens/internal/middleware"
	"trafficlens/internal/services"
	"trafficlens/pkg/contracts/domain"
)

// dateParamLayout is the format of the start and end query parameters.
const dateParamLayout = "2006-01-02"

// AnalysisHandler serves session lifecycle, uploads, aggregates and the
// processed-table export.
type AnalysisHandler struct {
	service        *services.AnalysisService
	sessions       *services.SessionStore
	csv            *exporter.CSVWriter
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewAnalysisHandler creates the handler.
func NewAnalysisHandler(service *services.AnalysisService, sessions *services.SessionStore, csv *exporter.CSVWriter, logger *slog.Logger, maxUploadBytes int64) *AnalysisHandler {
	return &AnalysisHandler{
		service:        service,
		sessions:       sessions,
		csv:            csv,
		logger:         logger.With(slog.String("component", "analysis_handler")),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the analysis routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Delete("/", h.DeleteSession)
		r.Post("/data", h.UploadData)
		r.Get("/report", h.GetReport)
		r.Get("/aggregate", h.GetAggregate)
		r.Get("/export", h.ExportData)
	})
	return r
}

// sessionResponse is the JSON shape of a session resource.
type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession handles POST /sessions.
func (h *AnalysisHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.logger.InfoContext(r.Context(), "session created",
		slog.String("session_id", s.ID),
		slog.String("request_id", middleware.GetReqID(r.Context())))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sessionResponse{ID: s.ID, CreatedAt: s.CreatedAt})
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (h *AnalysisHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if h.sessions.Get(id) == nil {
		render.Render(w, r, apierrors.ErrSessionNotFound)
		return
	}
	h.sessions.Delete(id)
	render.NoContent(w, r)
}

// UploadData handles POST /sessions/{sessionID}/data. The request body
// is the raw file content; the filename query parameter selects the
// parser route. sample=true analyzes the built-in dataset instead.
func (h *AnalysisHandler) UploadData(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		render.Render(w, r, apierrors.ErrSessionNotFound)
		return
	}

	opts, apiErr := analyzeOptionsFromQuery(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	var (
		filename string
		data     []byte
	)
	if r.URL.Query().Get("sample") == "true" {
		filename = dataprocessing.SampleFilename
		data = []byte(dataprocessing.SampleCSV)
	} else {
		filename = r.URL.Query().Get("filename")
		if filename == "" {
			render.Render(w, r, apierrors.ErrValidation("filename", "filename query parameter is required"))
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, h.maxUploadBytes+1))
		if err != nil {
			render.Render(w, r, apierrors.ErrInvalidRequest)
			return
		}
		if int64(len(body)) > h.maxUploadBytes {
			render.Render(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		data = body
	}

	result, err := h.service.Analyze(r.Context(), filename, data, opts)
	if err != nil {
		h.logger.WarnContext(r.Context(), "analysis rejected",
			slog.String("session_id", session.ID),
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		render.Render(w, r, mapPipelineError(err))
		return
	}

	session.SetResult(filename, result)
	render.JSON(w, r, result.Report)
}

// GetReport handles GET /sessions/{sessionID}/report, returning the
// dashboard report of the last analyzed upload.
func (h *AnalysisHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		render.Render(w, r, apierrors.ErrSessionNotFound)
		return
	}
	_, report, ok := session.Result()
	if !ok {
		render.Render(w, r, apierrors.ErrNoDataUploaded)
		return
	}
	render.JSON(w, r, report)
}

// GetAggregate handles GET /sessions/{sessionID}/aggregate.
func (h *AnalysisHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		render.Render(w, r, apierrors.ErrSessionNotFound)
		return
	}
	table, _, ok := session.Result()
	if !ok {
		render.Render(w, r, apierrors.ErrNoDataUploaded)
		return
	}

	kind := domain.AggregateKind(r.URL.Query().Get("kind"))
	if kind == "" {
		render.Render(w, r, apierrors.ErrValidation("kind", "kind query parameter is required"))
		return
	}

	params := domain.AggregateParams{Column: r.URL.Query().Get("column")}
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil {
			render.Render(w, r, apierrors.ErrValidation("n", "n must be an integer"))
			return
		}
		params.N = n
	}

	start, end, apiErr := dateRangeFromQuery(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	result, err := h.service.Aggregate(r.Context(), table, kind, params, start, end)
	if err != nil {
		render.Render(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "INVALID_AGGREGATE", "Aggregate request failed", err.Error()))
		return
	}
	render.JSON(w, r, map[string]any{"kind": kind, "result": result})
}

// ExportData handles GET /sessions/{sessionID}/export, streaming the
// processed table as CSV.
func (h *AnalysisHandler) ExportData(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		render.Render(w, r, apierrors.ErrSessionNotFound)
		return
	}
	table, _, ok := session.Result()
	if !ok {
		render.Render(w, r, apierrors.ErrNoDataUploaded)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="processed_website_logs.csv"`)
	if err := h.csv.WriteRecordSet(w, table, exporter.WriteOptions{}); err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()))
	}
}

func analyzeOptionsFromQuery(r *http.Request) (services.AnalyzeOptions, *apierrors.APIError) {
	opts := services.AnalyzeOptions{
		AnonymizeIP: r.URL.Query().Get("anonymize_ip") == "true",
	}
	start, end, apiErr := dateRangeFromQuery(r)
	if apiErr != nil {
		return opts, apiErr
	}
	opts.Start, opts.End = start, end

	if nStr := r.URL.Query().Get("top_n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil || n < 1 {
			return opts, apierrors.ErrValidation("top_n", "top_n must be a positive integer")
		}
		opts.TopN = n
	}
	return opts, nil
}

func dateRangeFromQuery(r *http.Request) (start, end time.Time, apiErr *apierrors.APIError) {
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(dateParamLayout, s)
		if err != nil {
			return start, end, apierrors.ErrValidation("start", "start must be YYYY-MM-DD")
		}
		start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(dateParamLayout, s)
		if err != nil {
			return start, end, apierrors.ErrValidation("end", "end must be YYYY-MM-DD")
		}
		end = t
	}
	return start, end, nil
}

// mapPipelineError translates pipeline sentinels into API errors.
func mapPipelineError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, dataprocessing.ErrBinaryContent),
		errors.Is(err, dataprocessing.ErrNoValidLogLines),
		errors.Is(err, dataprocessing.ErrNoTimestampColumn),
		errors.Is(err, dataprocessing.ErrUnsupportedFormat),
		errors.Is(err, dataprocessing.ErrEmptyInput):
		return apierrors.InvalidInput(err)
	default:
		return apierrors.ErrInternalServer
	}
}
