// Package httpserver exposes the vault storage engine's HTTP/JSON API.
package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aoculi/sanctuary/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth       service.AuthService
	vault      service.VaultService
	items      service.ItemService
	links      service.LinkService
	log        *zap.Logger
	corsOrigin string
}

// New constructs a Server with injected services.
func New(
	auth service.AuthService,
	vault service.VaultService,
	items service.ItemService,
	links service.LinkService,
	log *zap.Logger,
	corsOrigin string,
) *Server {
	return &Server{
		auth:       auth,
		vault:      vault,
		items:      items,
		links:      links,
		log:        log,
		corsOrigin: corsOrigin,
	}
}

// Router builds the chi routing tree with middleware applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(Recover(s.log))
	r.Use(Logging(s.log))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match"},
		ExposedHeaders: []string{"ETag", "X-Vault-Version"},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/session", s.handleSession)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/user/wmk", s.handleSetWrappedKey)

		r.Get("/vault", s.handleGetVault)
		r.Get("/vault/manifest", s.handleGetManifest)
		r.Head("/vault/manifest", s.handleHeadManifest)
		r.Put("/vault/manifest", s.handlePutManifest)

		r.Get("/bookmarks", s.handleListBookmarks)
		r.Post("/bookmarks", s.handleCreateBookmark)
		r.Get("/bookmarks/{itemID}", s.handleGetBookmark)
		r.Put("/bookmarks/{itemID}", s.handleUpdateBookmark)
		r.Delete("/bookmarks/{itemID}", s.handleDeleteBookmark)
		r.Get("/bookmarks/{itemID}/tags", s.handleTagsOf)

		r.Get("/tags", s.handleListTags)
		r.Post("/tags", s.handleCreateTag)
		r.Get("/tags/{tagID}", s.handleGetTag)
		r.Put("/tags/{tagID}", s.handleUpdateTag)
		r.Delete("/tags/{tagID}", s.handleDeleteTag)

		r.Post("/bookmark-tags", s.handleLink)
		r.Delete("/bookmark-tags", s.handleUnlink)
	})

	return r
}

// identity returns the authenticated caller; requireAuth guarantees presence
// on protected routes.
func (s *Server) identity(r *http.Request) (service.Identity, bool) {
	return IdentityFromCtx(r.Context())
}
