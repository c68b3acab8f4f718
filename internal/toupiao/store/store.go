package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConcurrencyFailure is returned when a row changed since it was read.
	ErrConcurrencyFailure = errors.New("store: concurrency failure")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Sub-repositories obtained from a Tx run inside that
// transaction; a Tx cannot start another one.
type Store interface {
	Users() Users
	Roles() Roles
	Tokens() Tokens
	RecoveryCodes() RecoveryCodes
	Polls() Polls
	Votes() Votes
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when it returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByNormalizedName(ctx context.Context, normalizedName string) (domain.User, error)

	// GetUserByNormalizedEmail returns the earliest created user with the
	// email. Emails are not unique.
	GetUserByNormalizedEmail(ctx context.Context, normalizedEmail string) (domain.User, error)

	// CreateUser fails with ErrAlreadyExists on a duplicate user name.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser writes every mutable column of u provided the stored
	// concurrency stamp still equals expectedStamp.
	UpdateUser(ctx context.Context, u domain.User, expectedStamp string) error

	CountUsers(ctx context.Context) (int, error)

	// ListUsers pages through users oldest first.
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
}

type Roles interface {
	GetRoleByNormalizedName(ctx context.Context, normalizedName string) (domain.Role, error)
	CreateRole(ctx context.Context, r domain.Role) error
	ListRoles(ctx context.Context) ([]domain.Role, error)

	// AddUserToRole is idempotent.
	AddUserToRole(ctx context.Context, userID, roleID string) error
	RemoveUserFromRole(ctx context.Context, userID, roleID string) error
	IsUserInRole(ctx context.Context, userID, normalizedRoleName string) (bool, error)

	// ListRolesForUser returns role names ordered by name.
	ListRolesForUser(ctx context.Context, userID string) ([]string, error)
	ListUsersInRole(ctx context.Context, normalizedRoleName string) ([]domain.User, error)
}

type Tokens interface {
	CreateUserToken(ctx context.Context, t domain.UserToken) error

	// ConsumeUserToken deletes the matching unexpired token and returns
	// ErrNotFound if there was none. A token therefore works once.
	ConsumeUserToken(ctx context.Context, userID string, purpose domain.TokenPurpose, tokenHash string, now time.Time) error

	DeleteUserTokens(ctx context.Context, userID string, purpose domain.TokenPurpose) error
	DeleteExpiredUserTokens(ctx context.Context, now time.Time) (int64, error)
}

type RecoveryCodes interface {
	// ReplaceRecoveryCodes drops existing codes and stores codeHashes.
	ReplaceRecoveryCodes(ctx context.Context, userID string, codeHashes []string) error

	// ConsumeRecoveryCode deletes the code and reports whether it existed.
	ConsumeRecoveryCode(ctx context.Context, userID, codeHash string) (bool, error)

	CountRecoveryCodes(ctx context.Context, userID string) (int, error)
	DeleteRecoveryCodes(ctx context.Context, userID string) error
}

// PollFilter narrows ListPolls. Zero values match everything.
type PollFilter struct {
	Status  domain.PollStatus
	OwnerID string
	Limit   int
	Offset  int
}

type Polls interface {
	// CreatePoll inserts the poll with its options. Call it inside a Tx.
	CreatePoll(ctx context.Context, p domain.Poll) error

	// GetPoll returns the poll with options ordered by position.
	GetPoll(ctx context.Context, id string) (domain.Poll, error)

	// ListPolls returns polls newest first, without options, with Voters set.
	ListPolls(ctx context.Context, f PollFilter) ([]domain.Poll, error)

	// ClosePoll returns ErrNotFound if the poll does not exist or is closed.
	ClosePoll(ctx context.Context, id string, now time.Time) error

	DeletePoll(ctx context.Context, id string) error

	// CloseExpiredPolls closes open polls whose closes_at is at or before now.
	CloseExpiredPolls(ctx context.Context, now time.Time) (int64, error)
}

type Votes interface {
	// CreateVote inserts the ballot and its choices. A second vote by the
	// same user on the same poll fails with ErrAlreadyExists.
	CreateVote(ctx context.Context, v domain.Vote) error

	// GetVote returns a user's ballot on a poll.
	GetVote(ctx context.Context, pollID, userID string) (domain.Vote, error)

	// Tally counts votes per option, ordered by position, and the number of
	// distinct voters.
	Tally(ctx context.Context, pollID string) ([]domain.OptionTally, int, error)
}

type SigningKeys interface {
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListActiveSigningKeys returns keys neither retired nor expired at now,
	// newest first.
	ListActiveSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns keys not yet expired at now, newest first.
	ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
