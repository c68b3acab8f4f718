package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

// adminLockout is how far ahead an administrator lock ends.
const adminLockout = 100 * 365 * 24 * time.Hour

type adminIndexPage struct {
	Users     int
	Polls     int
	OpenPolls int
}

type adminUser struct {
	User   domain.User
	Roles  []string
	Locked bool
	Admin  bool
	Self   bool
}

type adminUsersPage struct {
	Users    []adminUser
	PrevPage int
	NextPage int
}

type adminPollsPage struct {
	Polls    []domain.Poll
	PrevPage int
	NextPage int
}

// AdminHandler serves the ADMIN area.
type AdminHandler struct {
	*pages
	Users *service.UserManager
	Roles *service.RoleManager
	Polls *service.PollService
}

// countAll pages through a listing to count its rows.
func countAll(list func(limit, offset int) (int, error)) (int, error) {
	const batch = 500
	total := 0
	for {
		n, err := list(batch, total)
		if err != nil {
			return 0, err
		}
		total += n
		if n < batch {
			return total, nil
		}
	}
}

func (h *AdminHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := &adminIndexPage{}

	var err error
	if data.Users, err = h.Users.Count(ctx); err != nil {
		h.serverError(w, r, err)
		return
	}
	data.Polls, err = countAll(func(limit, offset int) (int, error) {
		polls, err := h.Polls.ListAll(ctx, limit, offset)
		return len(polls), err
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data.OpenPolls, err = countAll(func(limit, offset int) (int, error) {
		polls, err := h.Polls.ListOpen(ctx, limit, offset)
		return len(polls), err
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "admin/index", h.page(w, r, "Administration", data))
}

func (h *AdminHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := PrincipalFromContext(ctx)
	page := pageNumber(r)

	users, err := h.Users.List(ctx, pageSize+1, (page-1)*pageSize)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data := &adminUsersPage{}
	data.PrevPage, data.NextPage = pager(page, len(users))
	if len(users) > pageSize {
		users = users[:pageSize]
	}

	for _, u := range users {
		roles, err := h.Users.GetRoles(ctx, u)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		row := adminUser{
			User:   u,
			Roles:  roles,
			Locked: h.Users.IsLockedOut(u),
			Self:   u.ID == p.User.ID,
		}
		for _, role := range roles {
			if role == domain.RoleAdmin {
				row.Admin = true
			}
		}
		data.Users = append(data.Users, row)
	}
	h.render(w, r, http.StatusOK, "admin/users", h.page(w, r, "Users", data))
}

// target loads the user named by the path. Administrators never act on
// their own account.
func (h *AdminHandler) target(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	p, _ := PrincipalFromContext(r.Context())
	u, err := h.Users.FindByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrUserNotFound) {
		h.notFound(w, r)
		return domain.User{}, false
	}
	if err != nil {
		h.serverError(w, r, err)
		return domain.User{}, false
	}
	if u.ID == p.User.ID {
		h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("You cannot change your own account here."))
		http.Redirect(w, r, "/Admin/Users", http.StatusFound)
		return domain.User{}, false
	}
	return u, true
}

func (h *AdminHandler) done(w http.ResponseWriter, r *http.Request, msg string, u domain.User) {
	slogx.FromContext(r.Context()).Info("admin changed user", slog.String("action", msg), slog.String("target_id", u.ID))
	h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T(msg, u.UserName))
	http.Redirect(w, r, "/Admin/Users", http.StatusFound)
}

func (h *AdminHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	end := h.now().Add(adminLockout)
	if _, err := h.Users.SetLockoutEnd(r.Context(), u, &end); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.done(w, r, "User %s has been locked.", u)
}

func (h *AdminHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	if _, err := h.Users.SetLockoutEnd(r.Context(), u, nil); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.done(w, r, "User %s has been unlocked.", u)
}

func (h *AdminHandler) HandleGrantAdmin(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	exists, err := h.Roles.RoleExists(ctx, domain.RoleAdmin)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !exists {
		if _, err := h.Roles.Create(ctx, domain.RoleAdmin); err != nil && !errors.Is(err, service.ErrDuplicateRole) {
			h.serverError(w, r, err)
			return
		}
	}
	in, err := h.Users.IsInRole(ctx, u, domain.RoleAdmin)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !in {
		if err := h.Users.AddToRole(ctx, u, domain.RoleAdmin); err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	h.done(w, r, "User %s is now an administrator.", u)
}

func (h *AdminHandler) HandleRevokeAdmin(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	err := h.Users.RemoveFromRole(r.Context(), u, domain.RoleAdmin)
	if err != nil && !errors.Is(err, service.ErrRoleNotFound) {
		h.serverError(w, r, err)
		return
	}
	h.done(w, r, "User %s is no longer an administrator.", u)
}

func (h *AdminHandler) HandlePolls(w http.ResponseWriter, r *http.Request) {
	page := pageNumber(r)
	polls, err := h.Polls.ListAll(r.Context(), pageSize+1, (page-1)*pageSize)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data := &adminPollsPage{}
	data.PrevPage, data.NextPage = pager(page, len(polls))
	if len(polls) > pageSize {
		polls = polls[:pageSize]
	}
	data.Polls = polls
	h.render(w, r, http.StatusOK, "admin/polls", h.page(w, r, "Manage polls", data))
}

func (h *AdminHandler) HandleDeletePoll(w http.ResponseWriter, r *http.Request) {
	err := h.Polls.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrPollNotFound) {
		h.notFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("admin deleted poll", slog.String("poll_id", r.PathValue("id")))
	h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("Poll deleted."))
	http.Redirect(w, r, "/Admin/Polls", http.StatusFound)
}
