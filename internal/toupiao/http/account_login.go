package http

import (
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
)

type loginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

type loginPage struct {
	Input          loginInput
	ExternalLogins []string
}

// LoginHandler serves /Identity/Account/Login.
type LoginHandler struct {
	*pages
	Login *service.LoginService
}

// HandleGet renders the login form. A pending two-factor sign-in is
// dropped so every login starts clean.
func (h *LoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	// No external schemes are configured; the section stays hidden.
	v := h.page(w, r, "Log in", &loginPage{})
	v.ReturnURL = returnURL(r)
	h.deleteCookie(w, twoFactorCookie)
	h.render(w, r, http.StatusOK, "account/login", v)
}

// HandlePost checks the credentials and branches on the outcome: register
// for unknown emails, a confirmation mail for unconfirmed ones, then
// success, second factor, lockout or failure.
func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ret := returnURL(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	in := loginInput{
		Email:      strings.TrimSpace(r.PostForm.Get("Input.Email")),
		Password:   r.PostForm.Get("Input.Password"),
		RememberMe: formBool(r.PostForm, "Input.RememberMe"),
	}
	data := &loginPage{Input: loginInput{Email: in.Email, RememberMe: in.RememberMe}}
	v := h.page(w, r, "Log in", data)
	v.ReturnURL = ret

	if !validateLogin(v.L, v.Errors, in) {
		h.render(w, r, http.StatusOK, "account/login", v)
		return
	}

	res, err := h.Login.Login(ctx, service.LoginRequest{
		Email:               in.Email,
		Password:            in.Password,
		RememberMe:          in.RememberMe,
		RememberMachine:     cookieValue(r, rememberMachineCookie),
		ConfirmationURL:     h.confirmEmailLink(r),
		ConfirmationMessage: confirmationMessage(v.L),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.metrics.Login(res.Status.String())

	switch res.Status {
	case service.LoginUnknownEmail:
		h.redirect(w, r, "/Identity/Account/Register", url.Values{
			"IsFromLogin": {"true"},
			"returnUrl":   {ret},
		})
	case service.LoginConfirmationSent:
		v.Errors.AddError("", v.L.T("Email sent! Please confirm before logging in"))
		h.render(w, r, http.StatusOK, "account/login", v)
	case service.LoginSucceeded:
		h.signIn(w, res.Session, res.IsAdmin)
		httpx.LocalRedirect(w, r, ret, "/")
	case service.LoginRequiresTwoFactor:
		h.writeTicket(w, twoFactorCookie, res.TwoFactor)
		h.redirect(w, r, "/Identity/Account/LoginWith2fa", url.Values{
			"ReturnUrl":  {ret},
			"RememberMe": {strconv.FormatBool(in.RememberMe)},
		})
	case service.LoginLockedOut:
		h.redirect(w, r, "/Identity/Account/Lockout", nil)
	default:
		v.Errors.AddError("", v.L.T("Invalid account or password!"))
		h.render(w, r, http.StatusOK, "account/login", v)
	}
}

func validateLogin(l *i18n.Localizer, ms *web.ModelState, in loginInput) bool {
	switch {
	case in.Email == "":
		ms.AddError("Input.Email", l.T("Please enter your email"))
	case !service.IsEmail(in.Email):
		ms.AddError("Input.Email", l.T("Please enter a valid email"))
	}
	if in.Password == "" {
		ms.AddError("Input.Password", required(l, "Password"))
	}
	return ms.IsValid()
}

// confirmEmailLink builds /Identity/Account/ConfirmEmail links for mail.
func (p *pages) confirmEmailLink(r *http.Request) service.CallbackURL {
	return func(userID, code string) string {
		return p.absoluteURL(r, "/Identity/Account/ConfirmEmail", url.Values{
			"userId": {userID},
			"code":   {code},
		})
	}
}

func (p *pages) resetPasswordLink(r *http.Request) service.CallbackURL {
	return func(_, code string) string {
		return p.absoluteURL(r, "/Identity/Account/ResetPassword", url.Values{"code": {code}})
	}
}

// confirmationMessage renders the localised confirmation mail. The link is
// HTML encoded into the body.
func confirmationMessage(l *i18n.Localizer) service.MessageFunc {
	return func(link string) (string, string) {
		body := l.T("Please confirm your account") + " <a href='" + html.EscapeString(link) + "'>" + l.T("Click here") + "</a>"
		return l.T("Confirm your email"), body
	}
}

func resetPasswordMessage(l *i18n.Localizer) service.MessageFunc {
	return func(link string) (string, string) {
		body := l.T("Please reset your password") + " <a href='" + html.EscapeString(link) + "'>" + l.T("Click here") + "</a>"
		return l.T("Reset password"), body
	}
}
