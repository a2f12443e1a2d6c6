package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/ctckit/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries result counts.
type Meta struct {
	Total int `json:"total"`
}

// RespondWithError inspects err: if it is an *errors.AppError the status and
// structured body are derived automatically; otherwise a generic 500 is sent.
func RespondWithError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(errors.Status(appErr), appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, errors.Internal(err).ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondList sends a 200 response with data and its length.
func RespondList(c *gin.Context, data any, total int) {
	c.JSON(http.StatusOK, DataResponse{Data: data, Meta: &Meta{Total: total}})
}
