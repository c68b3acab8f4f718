package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
)

type registerInput struct {
	UserName string
	Email    string
}

type registerPage struct {
	Input       registerInput
	IsFromLogin bool
}

// RegisterHandler serves registration and its confirmation page.
type RegisterHandler struct {
	*pages
	Account *service.AccountService
}

func (h *RegisterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v := h.page(w, r, "Register", &registerPage{IsFromLogin: queryBool(r, "IsFromLogin")})
	v.ReturnURL = returnURL(r)
	h.render(w, r, http.StatusOK, "account/register", v)
}

func (h *RegisterHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := service.CreateUserInput{
		UserName: strings.TrimSpace(r.PostForm.Get("Input.UserName")),
		Email:    strings.TrimSpace(r.PostForm.Get("Input.Email")),
		Password: r.PostForm.Get("Input.Password"),
	}
	confirm := r.PostForm.Get("Input.ConfirmPassword")

	ret := returnURL(r)
	v := h.page(w, r, "Register", &registerPage{Input: registerInput{UserName: in.UserName, Email: in.Email}})
	v.ReturnURL = ret
	l := v.L

	if in.UserName == "" {
		v.Errors.AddError("Input.UserName", required(l, "User name"))
	}
	switch {
	case in.Email == "":
		v.Errors.AddError("Input.Email", l.T("Please enter your email"))
	case !service.IsEmail(in.Email):
		v.Errors.AddError("Input.Email", l.T("Please enter a valid email"))
	}
	if in.Password == "" {
		v.Errors.AddError("Input.Password", required(l, "Password"))
	} else if in.Password != confirm {
		v.Errors.AddError("Input.ConfirmPassword", l.T("The password and confirmation password do not match."))
	}
	if !v.Errors.IsValid() {
		h.render(w, r, http.StatusOK, "account/register", v)
		return
	}

	_, err := h.Account.Register(r.Context(), in, h.confirmEmailLink(r), confirmationMessage(l))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrDuplicateUserName):
		v.Errors.AddError("Input.UserName", l.T("User name '%s' is already taken.", in.UserName))
	case errors.Is(err, service.ErrInvalidUserName):
		v.Errors.AddError("Input.UserName", l.T("User name '%s' is invalid.", in.UserName))
	case errors.Is(err, service.ErrInvalidEmail):
		v.Errors.AddError("Input.Email", l.T("Please enter a valid email"))
	default:
		if msgs := passwordErrors(l, err); msgs != nil {
			for _, m := range msgs {
				v.Errors.AddError("Input.Password", m)
			}
		} else {
			h.serverError(w, r, err)
			return
		}
	}
	if !v.Errors.IsValid() {
		h.render(w, r, http.StatusOK, "account/register", v)
		return
	}

	h.metrics.Registered()
	h.redirect(w, r, "/Identity/Account/RegisterConfirmation", url.Values{
		"email":     {in.Email},
		"returnUrl": {ret},
	})
}

type registerConfirmationPage struct {
	Email string
}

func (h *RegisterHandler) HandleConfirmation(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	v := h.page(w, r, "Register confirmation", &registerConfirmationPage{Email: email})
	v.ReturnURL = returnURL(r)
	h.render(w, r, http.StatusOK, "account/register_confirmation", v)
}

// EmailHandler serves email confirmation and its resend form.
type EmailHandler struct {
	*pages
	Account *service.AccountService
}

type confirmEmailPage struct {
	Confirmed bool
}

func (h *EmailHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, code := q.Get("userId"), q.Get("code")
	if userID == "" || code == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	_, err := h.Account.ConfirmEmail(r.Context(), userID, code)
	if err != nil && !errors.Is(err, service.ErrInvalidToken) {
		h.serverError(w, r, err)
		return
	}
	v := h.page(w, r, "Confirm email", &confirmEmailPage{Confirmed: err == nil})
	h.render(w, r, http.StatusOK, "account/confirm_email", v)
}

type emailFormPage struct {
	Email string
}

func (h *EmailHandler) HandleResendGet(w http.ResponseWriter, r *http.Request) {
	v := h.page(w, r, "Resend email confirmation", &emailFormPage{})
	h.render(w, r, http.StatusOK, "account/resend_email_confirmation", v)
}

// HandleResendPost answers the same way whether or not the email is known.
func (h *EmailHandler) HandleResendPost(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("Input.Email"))
	v := h.page(w, r, "Resend email confirmation", &emailFormPage{Email: email})
	if !validateEmailField(v, email) {
		h.render(w, r, http.StatusOK, "account/resend_email_confirmation", v)
		return
	}

	if err := h.Account.ResendConfirmation(r.Context(), email, h.confirmEmailLink(r), confirmationMessage(v.L)); err != nil {
		h.serverError(w, r, err)
		return
	}
	v.Errors.AddError("", v.L.T("Verification email sent. Please check your email."))
	h.render(w, r, http.StatusOK, "account/resend_email_confirmation", v)
}
