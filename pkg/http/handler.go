package http

import "github.com/labstack/echo/v4"

// Handler is implemented by anything that mounts routes on the server's
// echo instance. The server calls RegisterRoutes once before listening.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
