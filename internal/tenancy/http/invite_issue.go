package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/domain"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

type InviteIssueHandler struct {
	InviteService *service.InviteService
	LinkBase      string
}

// ServeHTTP godoc
//
//	@Summary		Issue Invitation Endpoint
//	@Description	Creates a single-use invite for a property owned by the caller.
//	@Description	The token is only ever returned here.
//	@Tags			Invitations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		invitesdk.IssueInviteRequest	true	"property_id, intended_identity, delivery_method"
//	@Success		201		{object}	invitesdk.IssueInviteResponse	"invite_id, token, link, expires_at"
//	@Failure		400		{object}	invitesdk.ErrorResponse			"invalid_request"
//	@Failure		401		{object}	invitesdk.ErrorResponse			"unauthorized"
//	@Failure		403		{object}	invitesdk.ErrorResponse			"not_owner"
//	@Failure		404		{object}	invitesdk.ErrorResponse			"invalid_resource"
//	@Failure		429		{object}	invitesdk.ErrorResponse			"rate_limited"
//	@Failure		500		{object}	invitesdk.ErrorResponse			"server_error"
//	@Router			/v1/invites [post]
func (h *InviteIssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req invitesdk.IssueInviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}

	issued, err := h.InviteService.IssueInvite(ctx, service.IssueInviteParams{
		PropertyID:       req.PropertyID,
		CallerID:         httpx.UserIDFromContext(ctx),
		IntendedIdentity: req.IntendedIdentity,
		DeliveryMethod:   domain.DeliveryMethod(req.DeliveryMethod),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInviteRequest):
			writeError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest,
				"property_id is required and delivery_method must be link, email, sms or qr")
		case errors.Is(err, service.ErrInvalidResource):
			writeError(w, http.StatusNotFound, invitesdk.ErrorCodeInvalidResource, "Property does not exist")
		case errors.Is(err, service.ErrNotOwner):
			writeError(w, http.StatusForbidden, invitesdk.ErrorCodeNotOwner, "Only the property owner may issue invites")
		default:
			log.Error("failed to issue invite", "err", err)
			writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to issue invite")
		}
		return
	}

	link, err := invitesdk.BuildInviteLink(h.LinkBase, issued.Token)
	if err != nil {
		log.Error("failed to build invite link", "invite_id", issued.InviteID, "err", err)
		writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to issue invite")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, invitesdk.IssueInviteResponse{
		InviteID:  issued.InviteID,
		Token:     issued.Token,
		Link:      link,
		ExpiresAt: issued.ExpiresAt,
	})
}
