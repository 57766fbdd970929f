package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/tenancy/api/tenancy" // Swagger docs
	"github.com/aussiebroadwan/tenancy/internal/tenancy/service"
	"github.com/aussiebroadwan/tenancy/internal/tenancy/store"
	"github.com/aussiebroadwan/tenancy/pkg/httpx"
	"github.com/aussiebroadwan/tenancy/pkg/invitesdk"
	"github.com/aussiebroadwan/tenancy/pkg/jwtx"
	"github.com/aussiebroadwan/tenancy/pkg/ratelimit"
	"github.com/aussiebroadwan/tenancy/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	limiter      *ratelimit.Limiter
	clientIP     httpx.KeyExtractor
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	InviteService   *service.InviteService
	ProfileService  *service.ProfileService
	PropertyService *service.PropertyService

	// LinkBase is where issued invite links point, e.g. tenancy://invite.
	LinkBase string

	// RequiredScopes, when set, must intersect the caller's token scopes on
	// every authenticated route.
	RequiredScopes []string
}

func NewRouter(
	verifier jwtx.Verifier,
	limiter *ratelimit.Limiter,
	trustProxyHeaders bool,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		limiter:      limiter,
		clientIP:     httpx.ClientIPExtractor(trustProxyHeaders),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerInvites()
	r.registerProperties()
	r.registerProfile()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

//go:generate swag init -g router.go -d ./,../../../pkg/invitesdk -o ../../../api/tenancy --packageName tenancy --outputTypes go

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Tenancy Invite Service API
//	@version					0.1.0
//	@description				Single-use invite tokens linking tenants to landlord properties.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tenancy
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Identity provider access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured authenticates the caller, then applies op's limit keyed by user.
func (r *Router) secured(h http.Handler, op string) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(r.RequiredScopes...),
		httpx.RateLimit(r.limiter, op, httpx.UserIDKeyExtractor),
	)
}

func (r *Router) registerInvites() {
	preview := &InvitePreviewHandler{InviteService: r.InviteService}
	issue := &InviteIssueHandler{InviteService: r.InviteService, LinkBase: r.LinkBase}
	accept := &InviteAcceptHandler{InviteService: r.InviteService}
	manage := &InviteManageHandler{InviteService: r.InviteService}

	// GET /invites/preview - anonymous, limited by client IP
	r.Mux.Handle("GET /v1/invites/preview",
		httpx.Chain(preview,
			httpx.RateLimit(r.limiter, ratelimit.OpInvitePreview, r.clientIP),
		),
	)

	r.Mux.Handle("POST /v1/invites", r.secured(issue, ratelimit.OpInviteIssue))
	r.Mux.Handle("POST /v1/invites/accept", r.secured(accept, ratelimit.OpInviteAccept))
	r.Mux.Handle("DELETE /v1/invites/{id}",
		r.secured(http.HandlerFunc(manage.HandleRevoke), ratelimit.OpInviteManage))
	r.Mux.Handle("GET /v1/properties/{id}/invites",
		r.secured(http.HandlerFunc(manage.HandleList), ratelimit.OpInviteManage))
}

func (r *Router) registerProperties() {
	h := &PropertiesHandler{PropertyService: r.PropertyService}
	r.Mux.Handle("POST /v1/properties", r.secured(h, ratelimit.OpInviteManage))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{ProfileService: r.ProfileService}

	// Bootstrap is fail-closed: a role write must never bypass its limit.
	r.Mux.Handle("POST /v1/profile/bootstrap",
		r.secured(http.HandlerFunc(h.HandleBootstrap), ratelimit.OpProfileBootstrap))
	r.Mux.Handle("GET /v1/profile",
		r.secured(http.HandlerFunc(h.HandleGet), ratelimit.OpInviteManage))

	// Status reads never count against the window they report on.
	status := &RateLimitStatusHandler{Limiter: r.limiter}
	r.Mux.Handle("GET /v1/ratelimit/{operation}",
		httpx.Chain(status,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(r.RequiredScopes...),
		))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimit(r.limiter, ratelimit.OpSystemHealth, r.clientIP),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.limiter),
			httpx.RateLimit(r.limiter, ratelimit.OpSystemHealth, r.clientIP),
		),
	)
}

// writeError writes the common error body.
func writeError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, invitesdk.ErrorResponse{
		Success:          false,
		Error:            code,
		ErrorDescription: description,
	})
}
