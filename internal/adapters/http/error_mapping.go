package httpadapter

import (
	"net/http"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrViolation):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrRecordNotFound),
		domain.IsKind(err, domain.ErrRuleUnavailable):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrQueueSaturated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
