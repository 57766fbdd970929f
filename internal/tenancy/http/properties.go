package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

type PropertiesHandler struct {
	PropertyService *service.PropertyService
}

// ServeHTTP godoc
//
//	@Summary		Register Property
//	@Description	Registers a property owned by the caller. The caller's profile must have the landlord role.
//	@Tags			Properties
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		invitesdk.CreatePropertyRequest		true	"name, category, address"
//	@Success		201		{object}	invitesdk.CreatePropertyResponse	"id"
//	@Failure		400		{object}	invitesdk.ErrorResponse				"invalid_request"
//	@Failure		401		{object}	invitesdk.ErrorResponse				"unauthorized"
//	@Failure		403		{object}	invitesdk.ErrorResponse				"forbidden"
//	@Failure		500		{object}	invitesdk.ErrorResponse				"server_error"
//	@Router			/v1/properties [post]
func (h *PropertiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req invitesdk.CreatePropertyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}

	property, err := h.PropertyService.CreateProperty(ctx, service.CreatePropertyParams{
		CallerID:    httpx.UserIDFromContext(ctx),
		Name:        req.Name,
		Category:    req.Category,
		AddressLine: req.AddressLine,
		City:        req.City,
		Region:      req.Region,
		PostalCode:  req.PostalCode,
		Country:     req.Country,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPropertyRequest):
			writeError(w, http.StatusBadRequest, invitesdk.ErrorCodeInvalidRequest, "name and category are required")
		case errors.Is(err, service.ErrNotLandlord):
			writeError(w, http.StatusForbidden, invitesdk.ErrorCodeForbidden, "Only landlords may register properties")
		default:
			log.Error("failed to create property", "err", err)
			writeError(w, http.StatusInternalServerError, invitesdk.ErrorCodeServerError, "Failed to create property")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, invitesdk.CreatePropertyResponse{ID: property.ID})
}
