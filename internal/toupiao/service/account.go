package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

// AccountService backs the self-service account pages: registration, email
// confirmation and password reset.
type AccountService struct {
	Users  *UserManager
	Mailer EmailSender
}

// Register creates the user and mails the confirmation link.
func (s *AccountService) Register(ctx context.Context, in CreateUserInput, link CallbackURL, msg MessageFunc) (domain.User, error) {
	u, err := s.Users.Create(ctx, in)
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("User created a new account with password.", slog.String("user_id", u.ID))

	if err := s.SendConfirmation(ctx, u, link, msg); err != nil {
		return u, err
	}
	return u, nil
}

// SendConfirmation issues a confirmation token and mails its link.
func (s *AccountService) SendConfirmation(ctx context.Context, u domain.User, link CallbackURL, msg MessageFunc) error {
	code, err := s.Users.GenerateEmailConfirmationToken(ctx, u)
	if err != nil {
		return fmt.Errorf("generate confirmation token: %w", err)
	}
	subject, body := msg(link(u.ID, code))
	if err := s.Mailer.SendEmail(ctx, u.Email, subject, body); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

// ConfirmEmail validates the link parameters. Unknown users and bad codes
// both yield ErrInvalidToken.
func (s *AccountService) ConfirmEmail(ctx context.Context, userID, code string) (domain.User, error) {
	u, err := s.Users.FindByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return domain.User{}, ErrInvalidToken
	}
	if err != nil {
		return domain.User{}, err
	}
	return s.Users.ConfirmEmail(ctx, u, code)
}

// ResendConfirmation mails a new link when the email belongs to an
// unconfirmed user. It reports nothing about whether the email exists.
func (s *AccountService) ResendConfirmation(ctx context.Context, email string, link CallbackURL, msg MessageFunc) error {
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.EmailConfirmed {
		return nil
	}
	return s.SendConfirmation(ctx, u, link, msg)
}

// ForgotPassword mails a reset link to confirmed users. Unknown or
// unconfirmed emails are silently ignored.
func (s *AccountService) ForgotPassword(ctx context.Context, email string, link CallbackURL, msg MessageFunc) error {
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.EmailConfirmed {
		return nil
	}

	code, err := s.Users.GeneratePasswordResetToken(ctx, u)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	subject, body := msg(link(u.ID, code))
	if err := s.Mailer.SendEmail(ctx, u.Email, subject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password. An unknown email is reported as
// success so the page does not reveal registered addresses.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, password string) error {
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.Users.ResetPassword(ctx, u, code, password); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("user reset their password", slog.String("user_id", u.ID))
	return nil
}
