package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jadwa/internal/domain"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// FromError writes the envelope for a workflow error, choosing the status
// code from its domain kind. Internal errors keep their detail out of the
// body and are attached to the gin context for the error logger.
func FromError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	if kind == domain.KindInternal || kind == domain.KindPersistence {
		_ = c.Error(err)
		Error(c, status, string(kind), "internal server error")
		return
	}
	Error(c, status, string(kind), PublicMessage(err))
}

func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindPrecondition:
		return http.StatusPreconditionFailed
	case domain.KindInvalidTransition, domain.KindConflict:
		return http.StatusConflict
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage strips the sentinel prefix so "validation failed: price must
// be positive" becomes "price must be positive".
func PublicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		domain.ErrUnauthenticated,
		domain.ErrValidation,
		domain.ErrForbidden,
		domain.ErrNotFound,
		domain.ErrPrecondition,
		domain.ErrInvalidTransition,
		domain.ErrConflict,
		domain.ErrRateLimited,
	} {
		if errors.Is(err, sentinel) {
			if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
				return rest
			}
		}
	}
	return msg
}
