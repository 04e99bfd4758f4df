// Package httpapi exposes the minimum HTTP surface SPEC_FULL.md's §6
// names: GET /metrics, GET /opportunities/:id, POST /workflows,
// POST /workflows/:id/stop, GET /workflows/:id, POST /webhooks. It is a
// thin gin layer over the coordinator (C5); all business logic lives in
// internal/coordinator, internal/discovery, internal/router, internal/mev,
// and internal/executor.
package httpapi

import (
	"net/http"

	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// envelope is the response shape every handler returns, per spec.md §6:
// {ok, data?, error?, request_id}.
type envelope struct {
	OK        bool        `json:"ok"`
	Data      interface{} `json:"data,omitempty"`
	Error     *errorBody  `json:"error,omitempty"`
	RequestID string      `json:"request_id"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// requestID pulls the id the RequestID middleware stashed in the gin
// context, so every handler's envelope and every CoreError it logs carry
// the same id.
func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return uuid.NewString()
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{OK: true, Data: data, RequestID: requestID(c)})
}

// fail writes the error envelope, mapping a coreerrors.Kind to an HTTP
// status and setting Retry-After for transient kinds per spec.md §7.
func fail(c *gin.Context, err error) {
	kind, known := coreerrors.KindOf(err)
	if !known {
		kind = coreerrors.KindInternal
	}
	status := statusForKind(kind)
	if coreerrors.IsTransient(err) {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, envelope{
		OK:        false,
		Error:     &errorBody{Kind: string(kind), Message: err.Error()},
		RequestID: requestID(c),
	})
}

func statusForKind(kind coreerrors.Kind) int {
	switch kind {
	case coreerrors.KindValidation:
		return http.StatusBadRequest
	case coreerrors.KindNotFound:
		return http.StatusNotFound
	case coreerrors.KindLockHeld:
		return http.StatusConflict
	case coreerrors.KindRelayUnavailable, coreerrors.KindBackendUnavailable, coreerrors.KindKVUnavailable:
		return http.StatusServiceUnavailable
	case coreerrors.KindInsufficientLiquidity, coreerrors.KindPriceImpactTooHigh, coreerrors.KindNoProfitableRoute:
		return http.StatusUnprocessableEntity
	case coreerrors.KindInvalidSignature, coreerrors.KindExpiredDeadline, coreerrors.KindNonceConflict:
		return http.StatusConflict
	case coreerrors.KindMEVThreatCritical:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
