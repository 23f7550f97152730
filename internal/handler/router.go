package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mlukyanov/packtrack-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса учёта упаковки.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/token", h.Login)
			r.Post("/refresh", h.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/container", func(r chi.Router) {
				r.Post("/create", h.CreateContainer)
				r.Post("/get", h.ListContainers)
				r.Put("/rename", h.RenameContainer)
				r.Post("/packed", h.ConfirmPacked)
				r.Post("/delete", h.DeleteContainer)
				r.Post("/kit", h.GetManifest)
				r.Post("/download", h.DownloadManifest)
				r.Post("/export", h.ExportBulk)
				r.Post("/export/download", h.ExportBulkDownload)
			})

			r.Route("/dm", func(r chi.Router) {
				r.Post("/add", h.BindCode)
				r.Post("/delete", h.UnbindCode)
				r.Post("/info", h.CodeInfo)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
