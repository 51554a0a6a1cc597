package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	custommiddleware "github.com/mmeshcher/parking-system/internal/middleware"
)

// RouterOptions задаёт параметры middleware маршрутизатора.
type RouterOptions struct {
	// RequestTimeout ограничивает время обработки одного запроса; 0 отключает ограничение.
	RequestTimeout time.Duration
	// RateLimit задаёт число запросов в минуту с одного IP; 0 отключает ограничение.
	RateLimit int
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса парковок.
func (h *Handler) SetupRouter(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}
	if opts.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/clients", h.ListClients)
		r.Post("/clients", h.CreateClient)
		r.Get("/clients/{id}", h.GetClient)

		r.Get("/parkings", h.ListParkings)
		r.Post("/parkings", h.CreateParking)
		r.Get("/parkings/{id}", h.GetParking)

		r.Post("/client_parkings", h.Enter)
		r.Delete("/client_parkings", h.Exit)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
