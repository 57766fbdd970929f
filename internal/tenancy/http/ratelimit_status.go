package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

type RateLimitStatusHandler struct {
	Limiter *ratelimit.Limiter
}

// ServeHTTP godoc
//
//	@Summary		Rate Limit Status
//	@Description	Reports how much of an operation's window the caller has used, without recording a request.
//	@Tags			System
//	@Produce		json
//	@Security		BearerAuth
//	@Param			operation	path		string								true	"Operation, e.g. invite.accept"
//	@Success		200			{object}	invitesdk.RateLimitStatusResponse	"limit, used, remaining, window_seconds"
//	@Failure		401			{object}	invitesdk.ErrorResponse				"unauthorized"
//	@Failure		404			{object}	invitesdk.ErrorResponse				"not_found"
//	@Failure		503			{object}	invitesdk.ErrorResponse				"service_unavailable"
//	@Router			/v1/ratelimit/{operation} [get]
func (h *RateLimitStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	op := r.PathValue("operation")
	st, err := h.Limiter.Status(ctx, op, httpx.UserIDFromContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, ratelimit.ErrUnknownOperation):
			writeError(w, http.StatusNotFound, invitesdk.ErrorCodeNotFound, "Unknown operation")
		case errors.Is(err, ratelimit.ErrStoreUnavailable):
			log.Warn("rate limit status unavailable", "operation", op, "err", err)
			writeError(w, http.StatusServiceUnavailable, invitesdk.ErrorCodeServiceUnavailable,
				"Temporarily unavailable. Please try again later.")
		default:
			log.Error("failed to read rate limit status", "operation", op, "err", err)
			writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to read status")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, invitesdk.RateLimitStatusResponse{
		Operation:     op,
		Limit:         st.Limit,
		Used:          st.Used,
		Remaining:     st.Remaining,
		WindowSeconds: int(st.Window.Seconds()),
	})
}
