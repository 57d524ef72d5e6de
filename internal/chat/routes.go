package chat

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/chat/stream", h.HandleChatStream)
		r.Post("/classify", h.HandleClassify)
		r.Get("/providers", h.HandleProviders)
		r.Post("/route", h.HandleRoute)

		r.Post("/clear", h.HandleClear)
		r.Post("/undo", h.HandleUndo)
		r.Post("/redo", h.HandleRedo)
		r.Get("/history", h.HandleHistory)

		r.Get("/pending", h.HandleListPending)
		r.Post("/pending", h.HandleEnqueue)
		r.Post("/pending/process", h.HandleProcessQueue)
		r.Post("/pending/next", h.HandleProcessNext)
	})
}
