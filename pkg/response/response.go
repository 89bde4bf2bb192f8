package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letsee/debate-backend/pkg/apperr"
)

const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response with data (e.g. random match still pending).
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Code: string(apperr.KindValidation)})
}

// Unauthorized sends 401 for a missing or invalid seat ticket.
func Unauthorized(c *gin.Context, err string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Body{Success: false, Error: err, Code: codeUnauthorized})
}

// Forbidden sends 403 when a valid ticket is used outside its session.
func Forbidden(c *gin.Context, err string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Body{Success: false, Error: err, Code: codeForbidden})
}

// Error maps a classified error onto its HTTP status. Unclassified errors become a generic 500.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(StatusFor(kind), Body{Success: false, Error: apperr.ReasonOf(err), Code: string(kind)})
}

// StatusFor returns the HTTP status used for an error kind.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindScoringUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
