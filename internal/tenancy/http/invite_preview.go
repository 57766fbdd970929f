package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

type InvitePreviewHandler struct {
	InviteService *service.InviteService
}

// ServeHTTP godoc
//
//	@Summary		Preview Invitation Endpoint
//	@Description	Returns the public details of the property behind a usable invite token.
//	@Description	Unknown, expired, revoked and used tokens all produce the same 404 body.
//	@Tags			Invitations
//	@Produce		json
//	@Param			token	query		string						true	"Invite token"
//	@Success		200		{object}	invitesdk.PreviewResponse	"usable, resource_preview"
//	@Failure		404		{object}	invitesdk.PreviewResponse	"usable=false, error=invalid_token"
//	@Failure		429		{object}	invitesdk.ErrorResponse		"rate_limited"
//	@Failure		500		{object}	invitesdk.ErrorResponse		"server_error"
//	@Router			/v1/invites/preview [get]
func (h *InvitePreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	preview, err := h.InviteService.PreviewInvite(ctx, r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			httpx.WriteJSON(w, http.StatusNotFound, invitesdk.PreviewResponse{
				Usable: false,
				Error:  invitesdk.ErrorCodeInvalidToken,
			})
			return
		}
		log.Error("failed to preview invite", "err", err)
		writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to preview invite")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, invitesdk.PreviewResponse{
		Usable: true,
		ResourcePreview: &invitesdk.ResourcePreview{
			Name:           preview.Name,
			Category:       preview.Category,
			CoarseLocation: preview.CoarseLocation,
		},
	})
}
