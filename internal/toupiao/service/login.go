package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

// EmailSender delivers one HTML message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlMessage string) error
}

// CallbackURL builds the absolute link a token is mailed in.
type CallbackURL func(userID, code string) string

// MessageFunc renders the localised subject and HTML body for a link.
type MessageFunc func(link string) (subject, htmlBody string)

// LoginStatus is the branch the login page takes.
type LoginStatus int

const (
	LoginFailed LoginStatus = iota
	LoginSucceeded
	LoginUnknownEmail
	LoginConfirmationSent
	LoginRequiresTwoFactor
	LoginLockedOut
	LoginNotAllowed
)

func (s LoginStatus) String() string {
	switch s {
	case LoginSucceeded:
		return "succeeded"
	case LoginUnknownEmail:
		return "unknown_email"
	case LoginConfirmationSent:
		return "confirmation_sent"
	case LoginRequiresTwoFactor:
		return "requires_two_factor"
	case LoginLockedOut:
		return "locked_out"
	case LoginNotAllowed:
		return "not_allowed"
	default:
		return "failed"
	}
}

type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool

	RememberMachine string // remember-this-browser cookie value

	ConfirmationURL     CallbackURL
	ConfirmationMessage MessageFunc
}

type LoginResult struct {
	Status  LoginStatus
	User    domain.User
	IsAdmin bool // set on success

	Session         *Ticket
	TwoFactor       *Ticket
	RememberMachine *Ticket
}

// LoginService runs the login page's credential check: email lookup,
// confirmation mail for unconfirmed accounts, password sign-in and the
// first-user-becomes-admin promotion.
type LoginService struct {
	Store   store.Store
	Users   *UserManager
	Roles   *RoleManager
	SignIn  *SignInManager
	Account *AccountService

	// LockoutOnFailure counts wrong passwords toward lockout.
	LockoutOnFailure bool
}

func (s *LoginService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{Status: LoginUnknownEmail}, nil
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("find user by email: %w", err)
	}

	if !u.EmailConfirmed {
		if err := s.Account.SendConfirmation(ctx, u, req.ConfirmationURL, req.ConfirmationMessage); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Status: LoginConfirmationSent, User: u}, nil
	}

	out, err := s.SignIn.PasswordSignIn(ctx, PasswordSignInRequest{
		UserName:         u.UserName,
		Password:         req.Password,
		Persistent:       req.RememberMe,
		LockoutOnFailure: s.LockoutOnFailure,
		RememberMachine:  req.RememberMachine,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("password sign-in: %w", err)
	}

	res := LoginResult{User: out.User, TwoFactor: out.TwoFactor}
	switch {
	case out.Result.Succeeded:
		l.Info("User logged in.", slog.String("user_id", out.User.ID))
		isAdmin, err := s.PromoteFirstUser(ctx, out.User)
		if err != nil {
			return LoginResult{}, err
		}
		res.Status = LoginSucceeded
		res.IsAdmin = isAdmin
		res.Session = out.Session
		res.RememberMachine = out.RememberMachine
	case out.Result.RequiresTwoFactor:
		res.Status = LoginRequiresTwoFactor
	case out.Result.IsLockedOut:
		l.Warn("用户帐户被锁定。", slog.String("user_id", out.User.ID))
		res.Status = LoginLockedOut
	case out.Result.IsNotAllowed:
		res.Status = LoginNotAllowed
	default:
		res.Status = LoginFailed
	}
	return res, nil
}

// PromoteFirstUser makes u an ADMIN when u is the only registered user and
// reports whether u is an ADMIN afterwards. It runs in one transaction.
func (s *LoginService) PromoteFirstUser(ctx context.Context, u domain.User) (bool, error) {
	l := slogx.FromContext(ctx)

	var isAdmin bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		users := s.Users.WithStore(tx)
		roles := s.Roles.WithStore(tx)

		n, err := users.Count(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if n == 1 {
			exists, err := roles.RoleExists(ctx, domain.RoleAdmin)
			if err != nil {
				return err
			}
			if !exists {
				if _, err := roles.Create(ctx, domain.RoleAdmin); err != nil {
					return fmt.Errorf("create %s role: %w", domain.RoleAdmin, err)
				}
			}
			in, err := users.IsInRole(ctx, u, domain.RoleAdmin)
			if err != nil {
				return err
			}
			if !in {
				if err := users.AddToRole(ctx, u, domain.RoleAdmin); err != nil {
					return fmt.Errorf("add to %s: %w", domain.RoleAdmin, err)
				}
				l.Info(fmt.Sprintf("User: %s is ADMIN now", u.Email), slog.String("user_id", u.ID))
			}
		}

		isAdmin, err = users.IsInRole(ctx, u, domain.RoleAdmin)
		return err
	})
	return isAdmin, err
}
