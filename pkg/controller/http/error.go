package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.From(r.Context())

	switch {
	case goerr.HasTag(err, errs.TagNotFound):
		logger.Warn("Not Found", "error", err)
		http.Error(w, "not found", http.StatusNotFound)

	case goerr.HasTag(err, errs.TagValidation), goerr.HasTag(err, errs.TagInvalidRequest):
		logger.Warn("Bad Request", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)

	case goerr.HasTag(err, errs.TagForbidden):
		logger.Warn("Forbidden", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)

	case goerr.HasTag(err, errs.TagRateLimit):
		logger.Warn("Rate Limit Exceeded", "error", err)
		http.Error(w, "too many requests", http.StatusTooManyRequests)

	case goerr.HasTag(err, errs.TagExternal):
		logger.Error("External Service Error", "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)

	case goerr.HasTag(err, errs.TagTimeout):
		logger.Error("Gateway Timeout", "error", err)
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)

	default:
		errs.Handle(r.Context(), err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
