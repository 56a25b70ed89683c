package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/repository"
	"budgetbuddy/internal/services"
)

// Business codes carried in the response envelope.
const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodeValidation   = 42201
	CodeRateLimited  = 42901
	CodeServerErr    = 50001
	CodeRemoteErr    = 50201
	CodeUnavailable  = 50301
)

// ErrSyncDisabled is returned by the sync endpoints when no remote store is
// configured.
var ErrSyncDisabled = errors.New("cloud sync is not configured")

// Success writes {"code":0,"data":data} with status 200.
func Success(c *gin.Context, data any) {
	SuccessStatus(c, http.StatusOK, data)
}

func SuccessStatus(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error writes {"code":code,"message":msg}.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// classify maps a domain error to its HTTP status and business code.
func classify(err error) (int, int) {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, cloudsync.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, CodeAuth
	case errors.Is(err, cloudsync.ErrNoBackup), errors.Is(err, services.ErrTransactionNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, cloudsync.ErrNothingToSync), errors.Is(err, cloudsync.ErrNothingToRestore):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, cloudsync.ErrRemoteSync):
		return http.StatusBadGateway, CodeRemoteErr
	case errors.Is(err, ErrSyncDisabled), errors.Is(err, auth.ErrNoSecret):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeServerErr
	}
}

// Fail records err on the context and writes the mapped error response.
// Server errors get a generic message.
func Fail(c *gin.Context, err error) {
	status, code := classify(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	Error(c, status, code, msg)
}

// BadRequest rejects malformed input that never reached the domain layer.
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, CodeInvalidParam, msg)
}
