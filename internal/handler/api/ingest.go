package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	models "MandiWatch/internal/domain/models"
	"MandiWatch/internal/ingest"
	"MandiWatch/internal/service/ratelimit"
	"MandiWatch/internal/usecase"
	xhttp "MandiWatch/pkg/http"
	xlogger "MandiWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// IngestResult is the per-record outcome of a push submission.
type IngestResult struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// IngestHandler implements the push ingestion API.
type IngestHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	limiter  *ratelimit.Limiter
}

func NewIngestHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline, limiter *ratelimit.Limiter) *IngestHandler {
	return &IngestHandler{logger: logger, pipeline: pipeline, limiter: limiter}
}

func (h *IngestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/reports", h.Report)
	g.POST("/reports/batch", h.ReportBatch)
	g.POST("/inventory", h.Inventory)
	g.POST("/inventory/batch", h.InventoryBatch)
}

func (h *IngestHandler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.submitReport(c, req)
	if !res.Accepted && res.Reason == "rate_limited" {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IngestHandler) ReportBatch(c echo.Context) error {
	req := &models.ReportBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	results := make([]IngestResult, len(req.Reports))
	for i := range req.Reports {
		results[i] = h.submitReport(c, &req.Reports[i])
	}
	return xhttp.SuccessResponse(c, results)
}

func (h *IngestHandler) submitReport(c echo.Context, req *models.ReportRequest) IngestResult {
	if h.limiter != nil && !h.limiter.Allow(req.SourceID) {
		return IngestResult{Reason: "rate_limited"}
	}
	observed, err := parseObservedAt(req.ObservedAt)
	if err != nil {
		return IngestResult{Reason: "bad_timestamp"}
	}
	reliability := 1.0
	if req.Reliability != nil {
		reliability = *req.Reliability
	}
	report := &models.PriceReport{
		Commodity:   req.Commodity,
		Region:      req.Region,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Grade:       models.QualityGrade(req.Grade),
		SourceID:    req.SourceID,
		ObservedAt:  observed,
		Reliability: reliability,
	}
	if err := h.pipeline.SubmitReport(c.Request().Context(), report); err != nil {
		return IngestResult{Reason: rejectionReason(err)}
	}
	return IngestResult{Accepted: true, ID: report.ID}
}

func (h *IngestHandler) Inventory(c echo.Context) error {
	req := &models.InventoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.submitSnapshot(c, req)
	if !res.Accepted && res.Reason == "rate_limited" {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IngestHandler) InventoryBatch(c echo.Context) error {
	req := &models.InventoryBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	results := make([]IngestResult, len(req.Snapshots))
	for i := range req.Snapshots {
		results[i] = h.submitSnapshot(c, &req.Snapshots[i])
	}
	return xhttp.SuccessResponse(c, results)
}

func (h *IngestHandler) submitSnapshot(c echo.Context, req *models.InventoryRequest) IngestResult {
	if h.limiter != nil && !h.limiter.Allow(req.SourceID) {
		return IngestResult{Reason: "rate_limited"}
	}
	observed, err := parseObservedAt(req.ObservedAt)
	if err != nil {
		return IngestResult{Reason: "bad_timestamp"}
	}
	snap := &models.InventorySnapshot{
		Location:   req.Location,
		Region:     req.Region,
		Commodity:  req.Commodity,
		OnHand:     req.OnHand,
		SourceID:   req.SourceID,
		ObservedAt: observed,
	}
	if err := h.pipeline.SubmitSnapshot(c.Request().Context(), snap); err != nil {
		return IngestResult{Reason: rejectionReason(err)}
	}
	return IngestResult{Accepted: true, ID: snap.ID}
}

// parseObservedAt accepts RFC3339 or unix seconds.
func parseObservedAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if sec > 1e11 { // ms
		return time.UnixMilli(sec).UTC(), nil
	}
	return time.Unix(sec, 0).UTC(), nil
}

// rejectionReason maps the typed rejection onto its machine keyword.
func rejectionReason(err error) string {
	var verr *ingest.ValidationError
	if errors.As(err, &verr) {
		return verr.Field + "_" + verr.Reason
	}
	var serr *ingest.StaleDataError
	if errors.As(err, &serr) {
		if serr.Age < 0 {
			return "future_timestamp"
		}
		return "stale"
	}
	return "rejected"
}
