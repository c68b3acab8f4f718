package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
)

type twoFactorPage struct {
	Enabled           bool
	HasAuthenticator  bool
	RecoveryCodesLeft int
	MachineRemembered bool
}

type enableAuthenticatorPage struct {
	Setup domain.AuthenticatorSetup
}

type recoveryCodesPage struct {
	Codes []string
}

// ManageTwoFactorHandler serves the signed-in user's two-factor settings.
type ManageTwoFactorHandler struct {
	*pages
	TwoFactor *service.TwoFactorService
	SignIn    *service.SignInManager
}

const manageTwoFactorPath = "/Identity/Account/Manage/TwoFactorAuthentication"

func (h *ManageTwoFactorHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	u := p.User

	left, err := h.TwoFactor.CountRecoveryCodes(r.Context(), u)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	v := h.page(w, r, "Two-factor authentication (2FA)", &twoFactorPage{
		Enabled:           u.TwoFactorEnabled,
		HasAuthenticator:  u.AuthenticatorKey != nil && *u.AuthenticatorKey != "",
		RecoveryCodesLeft: left,
		MachineRemembered: cookieValue(r, rememberMachineCookie) != "",
	})
	h.render(w, r, http.StatusOK, "manage/two_factor", v)
}

func (h *ManageTwoFactorHandler) HandleEnableGet(w http.ResponseWriter, r *http.Request) {
	setup, ok := h.setup(w, r)
	if !ok {
		return
	}
	v := h.page(w, r, "Configure authenticator app", &enableAuthenticatorPage{Setup: setup})
	h.render(w, r, http.StatusOK, "manage/enable_authenticator", v)
}

func (h *ManageTwoFactorHandler) HandleEnablePost(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	code := strings.NewReplacer(" ", "", "-", "").Replace(r.PostFormValue("Input.Code"))

	setup, ok := h.setup(w, r)
	if !ok {
		return
	}
	v := h.page(w, r, "Configure authenticator app", &enableAuthenticatorPage{Setup: setup})
	if code == "" {
		v.Errors.AddError("Input.Code", required(v.L, "Verification code"))
		h.render(w, r, http.StatusOK, "manage/enable_authenticator", v)
		return
	}

	// setup may have issued the key; reload so the stamp matches.
	u, err := h.SignIn.Users.FindByID(r.Context(), p.User.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	codes, err := h.TwoFactor.EnableAuthenticator(r.Context(), u, code)
	if errors.Is(err, service.ErrInvalidTOTPCode) {
		v.Errors.AddError("Input.Code", v.L.T("Verification code is invalid."))
		h.render(w, r, http.StatusOK, "manage/enable_authenticator", v)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	v = h.page(w, r, "Recovery codes", &recoveryCodesPage{Codes: codes})
	v.StatusMessage = v.L.T("Your authenticator app has been verified.")
	h.render(w, r, http.StatusOK, "manage/show_recovery_codes", v)
}

// setup returns the enrolment data, issuing a key when the user has none.
// A new key rotates the security stamp, so the session is refreshed.
func (h *ManageTwoFactorHandler) setup(w http.ResponseWriter, r *http.Request) (domain.AuthenticatorSetup, bool) {
	p, _ := PrincipalFromContext(r.Context())
	setup, u, err := h.TwoFactor.AuthenticatorSetup(r.Context(), p.User)
	if err != nil {
		h.serverError(w, r, err)
		return setup, false
	}
	if u.SecurityStamp != p.User.SecurityStamp {
		if err := h.refreshSignIn(w, p, u); err != nil {
			h.serverError(w, r, err)
			return setup, false
		}
	}
	return setup, true
}

func (h *ManageTwoFactorHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	u, err := h.TwoFactor.ResetAuthenticatorKey(r.Context(), p.User)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := h.refreshSignIn(w, p, u); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.deleteCookie(w, rememberMachineCookie)
	h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("Your authenticator app key has been reset, you will need to configure your authenticator app using the new key."))
	http.Redirect(w, r, "/Identity/Account/Manage/EnableAuthenticator", http.StatusFound)
}

func (h *ManageTwoFactorHandler) HandleGenerateCodes(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	codes, err := h.TwoFactor.GenerateRecoveryCodes(r.Context(), p.User)
	if errors.Is(err, service.ErrTwoFactorNotEnabled) {
		h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("Cannot generate recovery codes as two-factor authentication is not enabled."))
		http.Redirect(w, r, manageTwoFactorPath, http.StatusFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	v := h.page(w, r, "Recovery codes", &recoveryCodesPage{Codes: codes})
	v.StatusMessage = v.L.T("You have generated new recovery codes.")
	h.render(w, r, http.StatusOK, "manage/show_recovery_codes", v)
}

func (h *ManageTwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	if _, err := h.TwoFactor.Disable(r.Context(), p.User); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.deleteCookie(w, rememberMachineCookie)
	h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("2fa has been disabled. You can reenable 2fa when you setup an authenticator app"))
	http.Redirect(w, r, manageTwoFactorPath, http.StatusFound)
}

func (h *ManageTwoFactorHandler) HandleForgetBrowser(w http.ResponseWriter, r *http.Request) {
	h.deleteCookie(w, rememberMachineCookie)
	h.setTempData(w, r, "StatusMessage", localizer(r.Context()).T("The current browser has been forgotten. When you login again from this browser you will be prompted for your 2fa code."))
	http.Redirect(w, r, manageTwoFactorPath, http.StatusFound)
}

// refreshSignIn reissues the session after the user's stamp changed.
func (h *ManageTwoFactorHandler) refreshSignIn(w http.ResponseWriter, p *Principal, u domain.User) error {
	persistent := p.Claims != nil && p.Claims.Persistent
	out, err := h.SignIn.SignIn(u, persistent)
	if err != nil {
		return err
	}
	h.writeTicket(w, identityCookie, out.Session)
	return nil
}
