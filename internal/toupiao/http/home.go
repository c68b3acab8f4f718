package http

import (
	"net/http"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

type homePage struct {
	Polls []domain.Poll
}

type errorPage struct {
	RequestID string
}

// HomeHandler serves the landing page and the error page.
type HomeHandler struct {
	*pages
	Polls *service.PollService
}

func (h *HomeHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	polls, err := h.Polls.ListOpen(r.Context(), pageSize, 0)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "home/index", h.page(w, r, "Home", &homePage{Polls: polls}))
}

func (h *HomeHandler) HandleError(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)
	v := h.page(w, r, "Error", &errorPage{RequestID: w.Header().Get(slogx.RequestIDHeader)})
	h.render(w, r, http.StatusOK, "home/error", v)
}
