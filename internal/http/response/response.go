package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawpal/composite-service/internal/platform/apierr"
)

// Envelope is the wire shape shared by every composite response:
// {success, data} on success, {success:false, message, error?} on failure.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func List(c *gin.Context, count int, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Count: &count, Data: data})
}

// Err maps an error to the envelope, mirroring the originating failure's
// status. Stack traces and wrapped causes stay internal; only the message
// and any upstream error payload go out.
func Err(c *gin.Context, err error) {
	c.JSON(apierr.StatusOf(err), Envelope{
		Success: false,
		Message: err.Error(),
		Error:   apierr.DetailOf(err),
	})
}
