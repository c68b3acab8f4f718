package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/gorilla/securecookie"
)

// pages holds what every page handler needs to render and to read and
// write cookies.
type pages struct {
	renderer *web.Renderer
	codec    *securecookie.SecureCookie
	opts     Options
	metrics  *metrics.Metrics
}

func (p *pages) now() time.Time {
	if p.opts.Clock != nil {
		return p.opts.Clock()
	}
	return time.Now()
}

// page builds the view for a request and consumes the flash values meant
// for it.
func (p *pages) page(w http.ResponseWriter, r *http.Request, title string, data any) *web.View {
	ctx := r.Context()
	l := localizer(ctx)
	v := &web.View{
		Title:     l.T(title),
		L:         l,
		Culture:   l.Name(),
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		CSRFToken: csrfToken(ctx),
		Errors:    web.NewModelState(),
		Data:      data,
	}
	if pr, ok := PrincipalFromContext(ctx); ok {
		u := pr.User
		v.User = &u
		v.IsAdmin = pr.IsAdmin
	}

	flash := p.takeTempData(w, r, "StatusMessage", "ErrorMessage")
	v.StatusMessage = flash["StatusMessage"]
	if msg := flash["ErrorMessage"]; msg != "" {
		v.Errors.AddError("", msg)
	}
	return v
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, status int, page string, v *web.View) {
	if err := p.renderer.Render(w, status, page, v); err != nil {
		p.serverError(w, r, err)
	}
}

// serverError logs err and answers 500: the error text in development,
// the error page otherwise.
func (p *pages) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	if p.opts.Dev {
		http.Error(w, fmt.Sprintf("500 Internal Server Error\n\n%v", err), http.StatusInternalServerError)
		return
	}
	v := &web.View{
		Title:  localizer(r.Context()).T("Error"),
		L:      localizer(r.Context()),
		Path:   r.URL.Path,
		Errors: web.NewModelState(),
		Data:   errorPage{RequestID: w.Header().Get(slogx.RequestIDHeader)},
	}
	v.Culture = v.L.Name()
	if rerr := p.renderer.Render(w, http.StatusInternalServerError, "home/error", v); rerr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (p *pages) notFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

func (p *pages) redirect(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	http.Redirect(w, r, path, http.StatusFound)
}

// absoluteURL resolves path against PublicBaseURL when set, else against
// the request's scheme and host.
func (p *pages) absoluteURL(r *http.Request, path string, q url.Values) string {
	if p.opts.PublicBaseURL == "" {
		return httpx.AbsoluteURL(r, path, q)
	}
	u, err := url.Parse(strings.TrimRight(p.opts.PublicBaseURL, "/") + path)
	if err != nil {
		return httpx.AbsoluteURL(r, path, q)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// returnURL reads returnUrl in either casing and defaults to the site root.
func returnURL(r *http.Request) string {
	q := r.URL.Query()
	for _, k := range []string{"returnUrl", "ReturnUrl", "returnURL"} {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return "/"
}

// formBool reads a checkbox. Browsers send "true"; anything parseable as
// true counts.
func formBool(form url.Values, key string) bool {
	for _, v := range form[key] {
		if b, err := strconv.ParseBool(v); err == nil && b {
			return true
		}
	}
	return false
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// pageNumber reads ?page=, starting at 1.
func pageNumber(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

const pageSize = 20

// pager returns the previous and next page numbers, zero when absent.
func pager(page, got int) (prev, next int) {
	if page > 1 {
		prev = page - 1
	}
	if got > pageSize {
		next = page + 1
	}
	return prev, next
}

// passwordErrors turns a policy error into one message per broken rule.
func passwordErrors(l *i18n.Localizer, err error) []string {
	var pe *service.PasswordPolicyError
	if !errors.As(err, &pe) {
		return nil
	}
	out := make([]string, 0, len(pe.Violations))
	for _, v := range pe.Violations {
		switch v {
		case service.PasswordTooShort:
			out = append(out, l.T("Passwords must be at least %d characters.", pe.Policy.RequiredLength))
		case service.PasswordRequiresNonAlphanumeric:
			out = append(out, l.T("Passwords must have at least one non alphanumeric character."))
		case service.PasswordRequiresDigit:
			out = append(out, l.T("Passwords must have at least one digit ('0'-'9')."))
		case service.PasswordRequiresLower:
			out = append(out, l.T("Passwords must have at least one lowercase ('a'-'z')."))
		case service.PasswordRequiresUpper:
			out = append(out, l.T("Passwords must have at least one uppercase ('A'-'Z')."))
		case service.PasswordRequiresUniqueChars:
			out = append(out, l.T("Passwords must use at least %d different characters.", pe.Policy.RequiredUniqueChars))
		}
	}
	return out
}

func required(l *i18n.Localizer, field string) string {
	return l.T("The %s field is required.", l.T(field))
}
