package api

import (
	"errors"

	models "MandiWatch/internal/domain/models"
	"MandiWatch/internal/usecase"
	xhttp "MandiWatch/pkg/http"
	xlogger "MandiWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdminHandler covers review transitions and the versioned detection
// config.
type AdminHandler struct {
	logger *xlogger.Logger
	query  *usecase.QueryService
}

func NewAdminHandler(logger *xlogger.Logger, query *usecase.QueryService) *AdminHandler {
	return &AdminHandler{logger: logger, query: query}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/anomalies/:id/confirm", h.Confirm)
	g.POST("/anomalies/:id/resolve", h.Resolve)
	g.GET("/detection/config", h.GetConfig)
	g.PUT("/detection/config", h.PutConfig)
}

func (h *AdminHandler) Confirm(c echo.Context) error {
	return h.transition(c, models.StatusConfirmed)
}

func (h *AdminHandler) Resolve(c echo.Context) error {
	return h.transition(c, models.StatusResolved)
}

func (h *AdminHandler) transition(c echo.Context, to models.AnomalyStatus) error {
	req := &models.ReviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := c.Param("id")

	err := h.query.Review(c.Request().Context(), id, to, req.Notes)
	if err == nil {
		return xhttp.SuccessResponse(c, map[string]string{"id": id, "status": string(to)})
	}
	if errors.Is(err, usecase.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("record %s not found", id))
	}
	var terr *usecase.TransitionError
	if errors.As(err, &terr) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(terr.Error()))
	}
	h.logger.Error("review error", xlogger.String("id", id), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("review failed"))
}

func (h *AdminHandler) GetConfig(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.query.DetectionConfig())
}

func (h *AdminHandler) PutConfig(c echo.Context) error {
	cfg := &models.DetectionConfig{}
	if err := c.Bind(cfg); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("malformed config"))
	}

	applied, err := h.query.UpdateDetectionConfig(*cfg)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, applied)
}
