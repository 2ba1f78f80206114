package ingress

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// badRequest is a terse helper for the uniform {error} body on malformed
// or incomplete request bodies.
func badRequest(c *echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}
