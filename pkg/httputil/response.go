package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Duplicate bool        `json:"duplicate,omitempty"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with the given status code
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithDuplicate reports that a retried request was already applied
func RespondWithDuplicate(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status:    "success",
		Data:      data,
		Duplicate: true,
	})
}

// RespondWithMessage sends an error envelope with an explicit status
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Message: message,
	})
}

// RespondWithError maps an application error onto its HTTP status
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		RespondWithMessage(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := appErr.Code.HTTPStatus()
	message := appErr.Message
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "Internal server error"
	}
	RespondWithMessage(c, status, message)
}
