package api

import (
	"github.com/labstack/echo/v4"
)

// Router registers every API handler on one Echo instance.
type Router struct {
	ingest *IngestHandler
	query  *QueryHandler
	admin  *AdminHandler
}

func NewRouter(ingest *IngestHandler, query *QueryHandler, admin *AdminHandler) *Router {
	return &Router{ingest: ingest, query: query, admin: admin}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.ingest.RegisterRoutes(e)
	r.query.RegisterRoutes(e)
	r.admin.RegisterRoutes(e)
}
