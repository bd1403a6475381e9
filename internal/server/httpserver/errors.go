package httpserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/aoculi/sanctuary/internal/errs"
)

// writeError maps service-layer sentinels to HTTP statuses exhaustively.
// Unauthorized responses never distinguish the sub-cause; unknown errors are
// logged and collapsed to a generic internal error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, errs.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrPayloadTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrRateLimited):
		secs := int64(1)
		var ra *errs.RetryAfterError
		if errors.As(err, &ra) {
			if v := int64(math.Ceil(ra.RetryAfter.Seconds())); v > secs {
				secs = v
			}
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limited", RetryAfter: &secs})
	default:
		s.log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
