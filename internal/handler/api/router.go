package api

import (
	"github.com/labstack/echo/v4"

	xhttp "RangePulse/pkg/http"
)

// Router fans route registration out to every handler group.
type Router struct {
	handlers []xhttp.Handler
}

var _ xhttp.Handler = (*Router)(nil)

func NewRouter(handlers ...xhttp.Handler) *Router {
	return &Router{handlers: handlers}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		h.RegisterRoutes(e)
	}
}
