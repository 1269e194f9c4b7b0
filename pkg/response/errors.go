package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/pkg/apierrors"
)

// ErrorBody is the uniform error envelope required by spec.md §7:
// {code, message, details?, timestamp}.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

var kindStatus = map[apierrors.Kind]int{
	apierrors.KindInput:             http.StatusBadRequest,
	apierrors.KindNotFound:          http.StatusNotFound,
	apierrors.KindConflict:          http.StatusConflict,
	apierrors.KindTransientStorage:  http.StatusServiceUnavailable,
	apierrors.KindPermanentStorage:  http.StatusBadGateway,
	apierrors.KindCredentialExpired: http.StatusUnauthorized,
	apierrors.KindCompilerFailed:    http.StatusUnprocessableEntity,
	apierrors.KindInvariant:         http.StatusInternalServerError,
}

// Error translates a tagged apierrors.Error (or an untagged error, treated
// as KindInvariant) to a status code and the uniform error body. The admin
// handlers do not call it; they map kinds in internal/admin's writeRepoError.
func Error(c *gin.Context, err error) {
	kind := apierrors.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorBody{
		Code:      string(kind),
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
