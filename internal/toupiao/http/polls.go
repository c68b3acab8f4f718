package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
)

// closesAtLayout is what datetime-local inputs submit.
const closesAtLayout = "2006-01-02T15:04"

type pollsPage struct {
	Polls    []domain.Poll
	Mine     []domain.Poll
	PrevPage int
	NextPage int
}

type createPollForm struct {
	Title       string
	Description string
	Options     string
	MaxChoices  int
	ClosesAt    string
}

type pollDetailsPage struct {
	Poll         domain.Poll
	HasVoted     bool
	AcceptsVotes bool
	CanClose     bool
}

type pollResultsPage struct {
	Results domain.PollResults
}

// PollsHandler serves the voting pages.
type PollsHandler struct {
	*pages
	Polls *service.PollService
}

func (h *PollsHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageNumber(r)

	polls, err := h.Polls.ListAll(ctx, pageSize+1, (page-1)*pageSize)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data := &pollsPage{}
	data.PrevPage, data.NextPage = pager(page, len(polls))
	if len(polls) > pageSize {
		polls = polls[:pageSize]
	}
	data.Polls = polls

	if p, ok := PrincipalFromContext(ctx); ok && page == 1 {
		if data.Mine, err = h.Polls.ListByOwner(ctx, p.User.ID, pageSize, 0); err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	h.render(w, r, http.StatusOK, "polls/index", h.page(w, r, "Polls", data))
}

func (h *PollsHandler) HandleCreateGet(w http.ResponseWriter, r *http.Request) {
	v := h.page(w, r, "New poll", &createPollForm{MaxChoices: 1})
	h.render(w, r, http.StatusOK, "polls/create", v)
}

func (h *PollsHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	p, _ := PrincipalFromContext(r.Context())

	form := &createPollForm{
		Title:       r.PostForm.Get("Title"),
		Description: r.PostForm.Get("Description"),
		Options:     r.PostForm.Get("Options"),
		ClosesAt:    strings.TrimSpace(r.PostForm.Get("ClosesAt")),
	}
	v := h.page(w, r, "New poll", form)

	in := service.CreatePollInput{
		Title:       form.Title,
		Description: form.Description,
		Options:     strings.Split(strings.ReplaceAll(form.Options, "\r\n", "\n"), "\n"),
	}
	if s := strings.TrimSpace(r.PostForm.Get("MaxChoices")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			v.Errors.AddError("MaxChoices", v.L.T("Choices per voter must be between 1 and the number of options."))
		}
		in.MaxChoices, form.MaxChoices = n, n
	}
	if form.ClosesAt != "" {
		t, err := time.ParseInLocation(closesAtLayout, form.ClosesAt, time.Local)
		if err != nil {
			v.Errors.AddError("ClosesAt", v.L.T("The closing time is not a valid date."))
		} else {
			in.ClosesAt = &t
		}
	}
	if !v.Errors.IsValid() {
		h.render(w, r, http.StatusOK, "polls/create", v)
		return
	}

	poll, err := h.Polls.Create(r.Context(), p.User, in)
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		pollErrors(v.L, v.Errors, ve)
		h.render(w, r, http.StatusOK, "polls/create", v)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.metrics.PollCreated()
	h.setTempData(w, r, "StatusMessage", v.L.T("Poll created."))
	http.Redirect(w, r, "/Polls/Details/"+poll.ID, http.StatusFound)
}

// pollErrors maps validation failures of CreatePollInput onto form fields.
func pollErrors(l *i18n.Localizer, ms *web.ModelState, ve *service.ValidationError) {
	for _, f := range ve.Fields {
		switch {
		case f.Field == "Title" && f.Tag == "required":
			ms.AddError("Title", required(l, "Title"))
		case f.Field == "Title":
			ms.AddError("Title", l.T("The field %s must be a string with a maximum length of %d.", l.T("Title"), domain.MaxTitleLength))
		case f.Field == "Description":
			ms.AddError("Description", l.T("The field %s must be a string with a maximum length of %d.", l.T("Description"), domain.MaxDescription))
		case f.Field == "Options" && f.Tag == "unique":
			ms.AddError("Options", l.T("Options must be unique."))
		case strings.HasPrefix(f.Field, "Options["):
			ms.AddError("Options", l.T("Each option can be at most %d characters.", domain.MaxLabelLength))
		case f.Field == "Options":
			ms.AddError("Options", l.T("A poll needs between %d and %d options.", domain.MinPollOptions, domain.MaxPollOptions))
		case f.Field == "MaxChoices":
			ms.AddError("MaxChoices", l.T("Choices per voter must be between 1 and the number of options."))
		case f.Field == "ClosesAt":
			ms.AddError("ClosesAt", l.T("The closing time must be in the future."))
		default:
			ms.AddError("", l.T("The poll could not be saved."))
		}
	}
}

// details loads the poll page data for the signed-in user, if any.
func (h *PollsHandler) details(r *http.Request, id string) (*pollDetailsPage, error) {
	ctx := r.Context()
	poll, err := h.Polls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data := &pollDetailsPage{Poll: poll, AcceptsVotes: poll.AcceptsVotes(h.now())}
	if p, ok := PrincipalFromContext(ctx); ok {
		if _, data.HasVoted, err = h.Polls.VoteOf(ctx, poll.ID, p.User.ID); err != nil {
			return nil, err
		}
		data.CanClose = poll.Status == domain.PollOpen && (poll.OwnerID == p.User.ID || p.IsAdmin)
	}
	return data, nil
}

func (h *PollsHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	data, err := h.details(r, r.PathValue("id"))
	if errors.Is(err, service.ErrPollNotFound) {
		h.notFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	v := h.page(w, r, "Poll", data)
	v.Title = data.Poll.Title
	h.render(w, r, http.StatusOK, "polls/details", v)
}

// HandleVote records the ballot. Rule violations re-render the details
// page with the reason.
func (h *PollsHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	p, _ := PrincipalFromContext(r.Context())

	_, err := h.Polls.Vote(r.Context(), p.User, id, r.PostForm["option"])
	if err == nil {
		h.metrics.Voted()
		h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("Thank you for voting."))
		http.Redirect(w, r, "/Polls/Results/"+id, http.StatusFound)
		return
	}
	if errors.Is(err, service.ErrPollNotFound) {
		h.notFound(w, r)
		return
	}

	l := localizer(r.Context())
	var msg string
	switch {
	case errors.Is(err, service.ErrAlreadyVoted):
		msg = l.T("You have already voted in this poll.")
	case errors.Is(err, service.ErrPollClosed):
		msg = l.T("This poll is closed.")
	case errors.Is(err, service.ErrInvalidChoice):
		msg = l.T("Please choose between 1 and %d options.", max(1, h.maxChoices(r, id)))
	case errors.Is(err, service.ErrNotAllowedVote):
		msg = l.T("Please confirm your email before voting.")
	default:
		h.serverError(w, r, err)
		return
	}

	data, derr := h.details(r, id)
	if derr != nil {
		h.serverError(w, r, derr)
		return
	}
	v := h.page(w, r, "Poll", data)
	v.Title = data.Poll.Title
	v.Errors.AddError("", msg)
	h.render(w, r, http.StatusOK, "polls/details", v)
}

func (h *PollsHandler) maxChoices(r *http.Request, id string) int {
	poll, err := h.Polls.Get(r.Context(), id)
	if err != nil {
		return 1
	}
	return poll.MaxChoices
}

func (h *PollsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.Polls.Results(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrPollNotFound) {
		h.notFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	v := h.page(w, r, "Results", &pollResultsPage{Results: res})
	h.render(w, r, http.StatusOK, "polls/results", v)
}

// HandleClose is allowed for the owner and for admins.
func (h *PollsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, _ := PrincipalFromContext(r.Context())
	l := localizer(r.Context())

	err := h.Polls.Close(r.Context(), p.User, p.IsAdmin, id)
	switch {
	case err == nil:
		h.setTempData(w, r, "StatusMessage", l.T("Poll closed."))
	case errors.Is(err, service.ErrPollNotFound):
		h.notFound(w, r)
		return
	case errors.Is(err, service.ErrForbidden):
		http.Redirect(w, r, "/Identity/Account/AccessDenied", http.StatusFound)
		return
	case errors.Is(err, service.ErrPollClosed):
		h.setTempData(w, r, "StatusMessage", l.T("This poll is closed."))
	default:
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/Polls/Details/"+id, http.StatusFound)
}
