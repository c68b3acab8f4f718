package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
)

// PasswordHandler serves the forgot and reset password pages.
type PasswordHandler struct {
	*pages
	Account *service.AccountService
}

func (h *PasswordHandler) HandleForgotGet(w http.ResponseWriter, r *http.Request) {
	v := h.page(w, r, "Forgot your password?", &emailFormPage{})
	h.render(w, r, http.StatusOK, "account/forgot_password", v)
}

// HandleForgotPost always lands on the confirmation page so the form does
// not reveal which emails are registered.
func (h *PasswordHandler) HandleForgotPost(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("Input.Email"))
	v := h.page(w, r, "Forgot your password?", &emailFormPage{Email: email})
	if !validateEmailField(v, email) {
		h.render(w, r, http.StatusOK, "account/forgot_password", v)
		return
	}

	if err := h.Account.ForgotPassword(r.Context(), email, h.resetPasswordLink(r), resetPasswordMessage(v.L)); err != nil {
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/Identity/Account/ForgotPasswordConfirmation", http.StatusFound)
}

type resetPasswordPage struct {
	Code  string
	Email string
}

func (h *PasswordHandler) HandleResetGet(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "A code must be supplied for password reset.", http.StatusBadRequest)
		return
	}
	v := h.page(w, r, "Reset password", &resetPasswordPage{Code: code})
	h.render(w, r, http.StatusOK, "account/reset_password", v)
}

func (h *PasswordHandler) HandleResetPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	data := &resetPasswordPage{
		Code:  r.PostForm.Get("Input.Code"),
		Email: strings.TrimSpace(r.PostForm.Get("Input.Email")),
	}
	password := r.PostForm.Get("Input.Password")

	v := h.page(w, r, "Reset password", data)
	l := v.L
	validateEmailField(v, data.Email)
	if password == "" {
		v.Errors.AddError("Input.Password", required(l, "Password"))
	} else if password != r.PostForm.Get("Input.ConfirmPassword") {
		v.Errors.AddError("Input.ConfirmPassword", l.T("The password and confirmation password do not match."))
	}
	if !v.Errors.IsValid() {
		h.render(w, r, http.StatusOK, "account/reset_password", v)
		return
	}

	err := h.Account.ResetPassword(r.Context(), data.Email, data.Code, password)
	switch {
	case err == nil:
		http.Redirect(w, r, "/Identity/Account/ResetPasswordConfirmation", http.StatusFound)
		return
	case errors.Is(err, service.ErrInvalidToken):
		v.Errors.AddError("", l.T("Invalid token."))
	default:
		msgs := passwordErrors(l, err)
		if msgs == nil {
			h.serverError(w, r, err)
			return
		}
		for _, m := range msgs {
			v.Errors.AddError("Input.Password", m)
		}
	}
	h.render(w, r, http.StatusOK, "account/reset_password", v)
}

// validateEmailField checks the Input.Email field of single-email forms.
func validateEmailField(v *web.View, email string) bool {
	switch {
	case email == "":
		v.Errors.AddError("Input.Email", v.L.T("Please enter your email"))
	case !service.IsEmail(email):
		v.Errors.AddError("Input.Email", v.L.T("Please enter a valid email"))
	}
	return v.Errors.IsValid()
}
