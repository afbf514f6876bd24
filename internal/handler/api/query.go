package api

import (
	"errors"
	"fmt"
	"net/http"

	models "MandiWatch/internal/domain/models"
	"MandiWatch/internal/usecase"
	xhttp "MandiWatch/pkg/http"
	xlogger "MandiWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueryHandler implements the read side of the API: current prices,
// anomaly and pattern listings, stats, evidence and compliance export.
type QueryHandler struct {
	logger *xlogger.Logger
	query  *usecase.QueryService
}

func NewQueryHandler(logger *xlogger.Logger, query *usecase.QueryService) *QueryHandler {
	return &QueryHandler{logger: logger, query: query}
}

func (h *QueryHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/v1")
	g.GET("/prices/current", h.CurrentPrice)
	g.GET("/anomalies", h.Anomalies)
	g.GET("/patterns", h.Patterns)
	g.GET("/stats", h.Stats)
	g.GET("/inventory/status", h.InventoryStatus)
	g.GET("/export/compliance", h.Export)
}

func (h *QueryHandler) CurrentPrice(c echo.Context) error {
	req := &models.CurrentPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	current, err := h.query.CurrentPrice(ctx, req.Commodity, req.Region)
	if err != nil {
		if errors.Is(err, usecase.ErrNoData) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no price data for %s in %s", req.Commodity, req.Region))
		}
		h.logger.Error("current price query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if req.RadiusKM <= 0 {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
		return xhttp.SuccessResponse(c, current)
	}

	cross, err := h.query.CrossRegionPrice(ctx, req.Commodity, req.Region, req.RadiusKM)
	if err != nil && !errors.Is(err, usecase.ErrNoData) {
		h.logger.Error("cross-region query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"current":      current,
		"cross_region": cross,
	})
}

func (h *QueryHandler) Anomalies(c echo.Context) error {
	req := &models.AnomalyQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	filter, err := toFilter(req.Commodity, req.Region, req.From, req.To, req.Limit)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from/to must be RFC3339 or unix seconds"))
	}
	filter.Severity = models.Severity(req.Severity)
	filter.Status = models.AnomalyStatus(req.Status)

	rows := h.query.Anomalies(filter)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *QueryHandler) Patterns(c echo.Context) error {
	req := &models.PatternQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	filter, err := toFilter(req.Commodity, req.Region, req.From, req.To, req.Limit)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from/to must be RFC3339 or unix seconds"))
	}

	rows := h.query.Patterns(filter)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *QueryHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.query.Stats())
}

func (h *QueryHandler) InventoryStatus(c echo.Context) error {
	commodity := c.QueryParam("commodity")
	region := c.QueryParam("region")
	if commodity == "" || region == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("commodity and region are required"))
	}
	return xhttp.SuccessResponse(c, h.query.InventoryStatus(commodity, region))
}

func (h *QueryHandler) Export(c echo.Context) error {
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok1 := xhttp.ParseTime(req.From)
	to, ok2 := xhttp.ParseTime(req.To)
	if !ok1 || !ok2 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from/to must be RFC3339 or unix seconds"))
	}

	pkgs, err := h.query.ExportCompliance(c.Request().Context(), from, to, req.Region)
	if err != nil {
		h.logger.Error("compliance export error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("export failed"))
	}
	return xhttp.ListResponse(c, pkgs, int64(len(pkgs)))
}

func (h *QueryHandler) Health(c echo.Context) error {
	if err := h.query.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func toFilter(commodity, region, from, to string, limit int) (usecase.AnomalyFilter, error) {
	f := usecase.AnomalyFilter{Commodity: commodity, Region: region, Limit: limit}
	if from != "" {
		t, ok := xhttp.ParseTime(from)
		if !ok {
			return f, fmt.Errorf("bad from time %q", from)
		}
		f.From = t
	}
	if to != "" {
		t, ok := xhttp.ParseTime(to)
		if !ok {
			return f, fmt.Errorf("bad to time %q", to)
		}
		f.To = t
	}
	return f, nil
}
