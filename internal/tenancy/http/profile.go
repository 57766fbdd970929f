package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

type ProfileHandler struct {
	ProfileService *service.ProfileService
}

// HandleBootstrap godoc
//
//	@Summary		Bootstrap Profile
//	@Description	Creates the caller's profile and sets its role the first time it is called.
//	@Description	Later calls return the existing role with role_assigned=false.
//	@Tags			Profile
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		invitesdk.BootstrapProfileRequest	true	"role"
//	@Success		200		{object}	invitesdk.BootstrapProfileResponse	"id, role, role_assigned"
//	@Failure		400		{object}	invitesdk.ErrorResponse				"invalid_role"
//	@Failure		401		{object}	invitesdk.ErrorResponse				"unauthorized"
//	@Failure		403		{object}	invitesdk.ErrorResponse				"forbidden"
//	@Failure		429		{object}	invitesdk.ErrorResponse				"rate_limited"
//	@Failure		503		{object}	invitesdk.ErrorResponse				"service_unavailable"
//	@Router			/v1/profile/bootstrap [post]
func (h *ProfileHandler) HandleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req invitesdk.BootstrapProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}

	res, err := h.ProfileService.Bootstrap(ctx, service.BootstrapParams{
		IdentityID: httpx.UserIDFromContext(ctx),
		Email:      httpx.EmailFromContext(ctx),
		Role:       req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRole, "role must be landlord or tenant")
		case errors.Is(err, service.ErrRoleNotPermitted):
			writeError(w, http.StatusForbidden, invitesdk.ErrorCodeForbidden, "Role cannot be self-assigned")
		default:
			log.Error("failed to bootstrap profile", "err", err)
			writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to bootstrap profile")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, invitesdk.BootstrapProfileResponse{
		ID:           res.Profile.ID,
		Role:         string(res.Profile.Role),
		RoleAssigned: res.RoleAssigned,
	})
}

// HandleGet godoc
//
//	@Summary		Get Profile
//	@Description	Returns the caller's profile and active property links.
//	@Tags			Profile
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	invitesdk.ProfileResponse	"id, email, role, links"
//	@Failure		401	{object}	invitesdk.ErrorResponse		"unauthorized"
//	@Failure		404	{object}	invitesdk.ErrorResponse		"not_found"
//	@Failure		500	{object}	invitesdk.ErrorResponse		"server_error"
//	@Router			/v1/profile [get]
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	view, err := h.ProfileService.GetProfile(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, invitesdk.ErrorCodeNotFound, "Profile has not been bootstrapped")
			return
		}
		log.Error("failed to get profile", "err", err)
		writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to get profile")
		return
	}

	resp := invitesdk.ProfileResponse{
		ID:    view.Profile.ID,
		Email: view.Profile.Email,
		Role:  string(view.Profile.Role),
		Links: make([]invitesdk.LinkSummary, 0, len(view.Links)),
	}
	for _, l := range view.Links {
		resp.Links = append(resp.Links, invitesdk.LinkSummary{
			ID:         l.ID,
			PropertyID: l.PropertyID,
			Status:     string(l.Status),
			AcceptedAt: l.AcceptedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
