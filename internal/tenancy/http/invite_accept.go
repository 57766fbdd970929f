package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

type InviteAcceptHandler struct {
	InviteService *service.InviteService
}

// ServeHTTP godoc
//
//	@Summary		Accept Invitation Endpoint
//	@Description	Consumes an invite token and links the caller to its property.
//	@Description	Accepting again as the same identity succeeds with already_linked=true.
//	@Tags			Invitations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		invitesdk.AcceptRequest		true	"token, override_recipient"
//	@Success		200		{object}	invitesdk.AcceptResponse	"success, resource_id, already_linked"
//	@Failure		400		{object}	invitesdk.AcceptResponse	"invalid_request or invalid_token"
//	@Failure		401		{object}	invitesdk.ErrorResponse		"unauthorized"
//	@Failure		403		{object}	invitesdk.AcceptResponse	"wrong_recipient"
//	@Failure		429		{object}	invitesdk.ErrorResponse		"rate_limited"
//	@Failure		500		{object}	invitesdk.AcceptResponse	"server_error"
//	@Router			/v1/invites/accept [post]
func (h *InviteAcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req invitesdk.AcceptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" {
		writeAcceptError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, "token is required")
		return
	}

	res, err := h.InviteService.AcceptInvite(ctx, service.AcceptInviteParams{
		Token:             req.Token,
		IdentityID:        httpx.UserIDFromContext(ctx),
		IdentityEmail:     httpx.EmailFromContext(ctx),
		OverrideRecipient: req.OverrideRecipient,

		IdentityEmailVerified: httpx.EmailVerifiedFromContext(ctx),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			writeAcceptError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidToken,
				"Invite token is invalid or expired")
		case errors.Is(err, service.ErrWrongRecipient):
			writeAcceptError(w, http.StatusForbidden, invitesdk.ErrorCodeWrongRecipient,
				"Invite was issued to someone else; confirm to accept anyway")
		case errors.Is(err, service.ErrInvalidInviteRequest):
			writeAcceptError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest,
				"Invalid accept parameters")
		default:
			log.Error("failed to accept invite", "err", err)
			writeAcceptError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError,
				"Failed to accept invite")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, invitesdk.AcceptResponse{
		Success:       true,
		ResourceID:    res.PropertyID,
		AlreadyLinked: res.AlreadyLinked,
	})
}

func writeAcceptError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, invitesdk.AcceptResponse{
		Success:          false,
		Error:            code,
		ErrorDescription: description,
	})
}
