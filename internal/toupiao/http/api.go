package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/aussiebroadwan/toupiao/pkg/toupiaosdk"
)

const (
	apiDefaultLimit = 20
	apiMaxLimit     = 100
)

// PollsAPIHandler serves the read-only JSON API.
type PollsAPIHandler struct {
	Polls *service.PollService
}

func toSummary(p domain.Poll) toupiaosdk.PollSummary {
	s := toupiaosdk.PollSummary{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		MaxChoices:  p.MaxChoices,
		Voters:      p.Voters,
		ClosesAt:    p.ClosesAt,
		ClosedAt:    p.ClosedAt,
		CreatedAt:   p.CreatedAt,
	}
	for _, o := range p.Options {
		s.Options = append(s.Options, toupiaosdk.PollOption{ID: o.ID, Label: o.Label, Position: o.Position})
	}
	return s
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// HandleList godoc
//
//	@Summary		List polls
//	@Description	Returns polls newest first. Pass status=open to list only polls accepting votes.
//	@Tags			Polls
//	@Produce		json
//	@Param			status	query		string	false	"open or empty for all polls"
//	@Param			limit	query		int		false	"page size, at most 100"	default(20)
//	@Param			offset	query		int		false	"rows to skip"
//	@Success		200		{object}	toupiaosdk.PollList
//	@Failure		400		{object}	toupiaosdk.ErrorResponse
//	@Router			/api/v1/polls [get]
func (h *PollsAPIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", apiDefaultLimit)
	if !ok || limit == 0 {
		toupiaosdk.ErrInvalidRequest.WriteError(w)
		return
	}
	limit = min(limit, apiMaxLimit)
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		toupiaosdk.ErrInvalidRequest.WriteError(w)
		return
	}

	list := h.Polls.ListAll
	switch r.URL.Query().Get("status") {
	case "":
	case string(domain.PollOpen):
		list = h.Polls.ListOpen
	default:
		toupiaosdk.ErrInvalidRequest.WriteError(w)
		return
	}

	polls, err := list(r.Context(), limit+1, offset)
	if err != nil {
		slogx.FromContext(r.Context()).Error("list polls", slog.Any("error", err))
		toupiaosdk.ErrServerError.WriteError(w)
		return
	}

	resp := toupiaosdk.PollList{Polls: make([]toupiaosdk.PollSummary, 0, len(polls))}
	if len(polls) > limit {
		polls = polls[:limit]
		resp.NextOffset = offset + limit
	}
	for _, p := range polls {
		resp.Polls = append(resp.Polls, toSummary(p))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleResults godoc
//
//	@Summary		Poll results
//	@Description	Returns the vote count and share of voters for every option of a poll.
//	@Tags			Polls
//	@Produce		json
//	@Param			id	path		string	true	"poll ID"
//	@Success		200	{object}	toupiaosdk.PollResults
//	@Failure		404	{object}	toupiaosdk.ErrorResponse
//	@Router			/api/v1/polls/{id}/results [get]
func (h *PollsAPIHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.Polls.Results(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrPollNotFound) {
		toupiaosdk.ErrPollNotFound.WriteError(w)
		return
	}
	if err != nil {
		slogx.FromContext(r.Context()).Error("poll results", slog.Any("error", err))
		toupiaosdk.ErrServerError.WriteError(w)
		return
	}

	out := toupiaosdk.PollResults{
		PollID:      res.PollID,
		Title:       res.Title,
		Status:      string(res.Status),
		TotalVoters: res.TotalVoters,
		Options:     make([]toupiaosdk.OptionTally, 0, len(res.Options)),
	}
	for _, o := range res.Options {
		out.Options = append(out.Options, toupiaosdk.OptionTally(o))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
