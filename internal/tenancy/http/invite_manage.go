package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

// InviteManageHandler serves the owner's view of a property's invites.
type InviteManageHandler struct {
	InviteService *service.InviteService
}

// HandleList godoc
//
//	@Summary		List Property Invitations
//	@Description	Lists the invites of a property owned by the caller. Tokens are never included.
//	@Tags			Invitations
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string							true	"Property ID"
//	@Success		200	{object}	invitesdk.ListInvitesResponse	"invites"
//	@Failure		401	{object}	invitesdk.ErrorResponse			"unauthorized"
//	@Failure		403	{object}	invitesdk.ErrorResponse			"not_owner"
//	@Failure		404	{object}	invitesdk.ErrorResponse			"invalid_resource"
//	@Failure		500	{object}	invitesdk.ErrorResponse			"server_error"
//	@Router			/v1/properties/{id}/invites [get]
func (h *InviteManageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	invites, err := h.InviteService.ListInvites(ctx, r.PathValue("id"), httpx.UserIDFromContext(ctx))
	if err != nil {
		if !writeOwnershipError(w, err) {
			log.Error("failed to list invites", "err", err)
			writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to list invites")
		}
		return
	}

	now := time.Now()
	resp := invitesdk.ListInvitesResponse{Invites: make([]invitesdk.InviteSummary, 0, len(invites))}
	for _, inv := range invites {
		resp.Invites = append(resp.Invites, invitesdk.InviteSummary{
			ID:               inv.ID,
			PropertyID:       inv.PropertyID,
			Status:           inv.Status(now),
			DeliveryMethod:   string(inv.DeliveryMethod),
			IntendedIdentity: inv.IntendedIdentity,
			CreatedAt:        inv.CreatedAt,
			ExpiresAt:        inv.ExpiresAt,
			AcceptedAt:       inv.AcceptedAt,
			AcceptedBy:       inv.AcceptedBy,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevoke godoc
//
//	@Summary		Revoke Invitation
//	@Description	Makes a pending invite permanently unusable. Accepted invites cannot be revoked.
//	@Tags			Invitations
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Invite ID"
//	@Success		204	"No Content"
//	@Failure		401	{object}	invitesdk.ErrorResponse	"unauthorized"
//	@Failure		403	{object}	invitesdk.ErrorResponse	"not_owner"
//	@Failure		404	{object}	invitesdk.ErrorResponse	"invalid_token"
//	@Failure		500	{object}	invitesdk.ErrorResponse	"server_error"
//	@Router			/v1/invites/{id} [delete]
func (h *InviteManageHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.InviteService.RevokeInvite(ctx, r.PathValue("id"), httpx.UserIDFromContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			writeError(w, http.StatusNotFound, invitesdk.ErrorCodeInvalidToken, "Invite does not exist or is no longer pending")
		case writeOwnershipError(w, err):
		default:
			log.Error("failed to revoke invite", "err", err)
			writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to revoke invite")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeOwnershipError answers property lookup failures and reports whether
// it wrote a response.
func writeOwnershipError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, service.ErrInvalidResource):
		writeError(w, http.StatusNotFound, invitesdk.ErrorCodeInvalidResource, "Property does not exist")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, invitesdk.ErrorCodeNotOwner, "Only the property owner may manage its invites")
	default:
		return false
	}
	return true
}
