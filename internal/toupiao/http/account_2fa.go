package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
)

const twoFactorUserMissing = "Unable to load two-factor authentication user."

type loginWith2faPage struct {
	RememberMe bool
}

// TwoFactorLoginHandler completes a sign-in that is waiting for a second
// factor: an authenticator code or a recovery code.
type TwoFactorLoginHandler struct {
	*pages
	SignIn *service.SignInManager
	Login  *service.LoginService
}

// pending checks the two-factor cookie. Without a pending user the browser
// goes back to the login page with an error.
func (h *TwoFactorLoginHandler) pending(w http.ResponseWriter, r *http.Request) bool {
	if _, _, err := h.SignIn.TwoFactorUser(r.Context(), cookieValue(r, twoFactorCookie)); err != nil {
		h.setTempData(w, r, "ErrorMessage", localizer(r.Context()).T(twoFactorUserMissing))
		h.deleteCookie(w, twoFactorCookie)
		http.Redirect(w, r, "/Identity/Account/Login", http.StatusFound)
		return false
	}
	return true
}

func (h *TwoFactorLoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !h.pending(w, r) {
		return
	}
	v := h.page(w, r, "Two-factor authentication", &loginWith2faPage{RememberMe: queryBool(r, "RememberMe")})
	v.ReturnURL = returnURL(r)
	h.render(w, r, http.StatusOK, "account/login_with_2fa", v)
}

func (h *TwoFactorLoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	rememberMe, _ := strconv.ParseBool(r.PostForm.Get("RememberMe"))
	code := strings.NewReplacer(" ", "", "-", "").Replace(r.PostForm.Get("Input.TwoFactorCode"))

	v := h.page(w, r, "Two-factor authentication", &loginWith2faPage{RememberMe: rememberMe})
	v.ReturnURL = returnURL(r)
	if code == "" {
		v.Errors.AddError("Input.TwoFactorCode", required(v.L, "Authenticator code"))
		h.render(w, r, http.StatusOK, "account/login_with_2fa", v)
		return
	}

	out, err := h.SignIn.TwoFactorAuthenticatorSignIn(r.Context(), cookieValue(r, twoFactorCookie), code,
		rememberMe, formBool(r.PostForm, "Input.RememberMachine"))
	h.finish(w, r, v, "account/login_with_2fa", out, err, v.L.T("Invalid authenticator code."))
}

func (h *TwoFactorLoginHandler) HandleRecoveryGet(w http.ResponseWriter, r *http.Request) {
	if !h.pending(w, r) {
		return
	}
	v := h.page(w, r, "Recovery code verification", nil)
	v.ReturnURL = returnURL(r)
	h.render(w, r, http.StatusOK, "account/login_with_recovery_code", v)
}

func (h *TwoFactorLoginHandler) HandleRecoveryPost(w http.ResponseWriter, r *http.Request) {
	code := strings.ReplaceAll(r.PostFormValue("Input.RecoveryCode"), " ", "")

	v := h.page(w, r, "Recovery code verification", nil)
	v.ReturnURL = returnURL(r)
	if code == "" {
		v.Errors.AddError("Input.RecoveryCode", required(v.L, "Recovery code"))
		h.render(w, r, http.StatusOK, "account/login_with_recovery_code", v)
		return
	}

	out, err := h.SignIn.TwoFactorRecoveryCodeSignIn(r.Context(), cookieValue(r, twoFactorCookie), code)
	h.finish(w, r, v, "account/login_with_recovery_code", out, err, v.L.T("Invalid recovery code entered."))
}

// finish writes the cookies of a completed second factor, promoting the
// first user exactly like a password login does.
func (h *TwoFactorLoginHandler) finish(w http.ResponseWriter, r *http.Request, v *web.View, page string, out service.SignInOutcome, err error, invalid string) {
	if errors.Is(err, service.ErrTwoFactorUserMissing) {
		h.setTempData(w, r, "ErrorMessage", v.L.T(twoFactorUserMissing))
		h.deleteCookie(w, twoFactorCookie)
		http.Redirect(w, r, "/Identity/Account/Login", http.StatusFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	switch {
	case out.Result.Succeeded:
		isAdmin, err := h.Login.PromoteFirstUser(r.Context(), out.User)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		h.metrics.Login(service.LoginSucceeded.String())
		h.signIn(w, out.Session, isAdmin)
		h.writeTicket(w, rememberMachineCookie, out.RememberMachine)
		httpx.LocalRedirect(w, r, v.ReturnURL, "/")
	case out.Result.IsLockedOut:
		h.metrics.Login(service.LoginLockedOut.String())
		h.deleteCookie(w, twoFactorCookie)
		http.Redirect(w, r, "/Identity/Account/Lockout", http.StatusFound)
	default:
		h.metrics.Login(service.LoginFailed.String())
		v.Errors.AddError("", invalid)
		h.render(w, r, http.StatusOK, page, v)
	}
}

// LogoutHandler ends the session.
type LogoutHandler struct {
	*pages
	SignIn *service.SignInManager
}

func (h *LogoutHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "account/logout", h.page(w, r, "Log out", nil))
}

// HandlePost drops the session, two-factor and IsAdmin cookies.
func (h *LogoutHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		h.SignIn.SignOut(r.Context(), p.User.ID)
	}
	h.signOut(w)

	if ret := r.URL.Query().Get("returnUrl"); ret != "" {
		httpx.LocalRedirect(w, r, ret, "/")
		return
	}
	http.Redirect(w, r, "/Identity/Account/Logout", http.StatusFound)
}
