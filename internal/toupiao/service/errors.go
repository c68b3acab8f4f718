package service

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUserName  = errors.New("user name is already taken")
	ErrInvalidUserName    = errors.New("user name is required")
	ErrInvalidEmail       = errors.New("email address is invalid")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrInvalidSession     = errors.New("invalid session")
	ErrRoleNotFound       = errors.New("role not found")
	ErrDuplicateRole      = errors.New("role already exists")
	ErrConcurrency        = errors.New("user was modified concurrently")

	ErrInvalidTOTPCode      = errors.New("invalid verification code")
	ErrTwoFactorNotEnabled  = errors.New("two-factor authentication is not enabled")
	ErrNoAuthenticatorKey   = errors.New("no authenticator key")
	ErrInvalidRecoveryCode  = errors.New("invalid recovery code")
	ErrTwoFactorUserMissing = errors.New("unable to load two-factor authentication user")

	ErrPollNotFound   = errors.New("poll not found")
	ErrPollClosed     = errors.New("poll is closed")
	ErrAlreadyVoted   = errors.New("already voted")
	ErrInvalidChoice  = errors.New("invalid choice")
	ErrForbidden      = errors.New("forbidden")
	ErrNotAllowedVote = errors.New("account must be confirmed to vote")
)
