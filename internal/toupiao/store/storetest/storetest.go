// Package storetest holds the behaviour every store driver must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/idx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

// Run executes the shared store suite against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("roles", func(t *testing.T) { testRoles(t, newStore(t)) })
	t.Run("tokens", func(t *testing.T) { testTokens(t, newStore(t)) })
	t.Run("recovery codes", func(t *testing.T) { testRecoveryCodes(t, newStore(t)) })
	t.Run("polls and votes", func(t *testing.T) { testPollsAndVotes(t, newStore(t)) })
	t.Run("signing keys", func(t *testing.T) { testSigningKeys(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
}

var base = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

// NewUser returns a confirmed user row ready for CreateUser.
func NewUser(name, email string, createdAt time.Time) domain.User {
	return domain.User{
		ID:                 idx.NewAt(createdAt).String(),
		UserName:           name,
		NormalizedUserName: domain.Normalize(name),
		Email:              email,
		NormalizedEmail:    domain.Normalize(email),
		EmailConfirmed:     true,
		PasswordHash:       "$argon2id$placeholder",
		SecurityStamp:      uuid.NewString(),
		ConcurrencyStamp:   uuid.NewString(),
		LockoutEnabled:     true,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func mustCreateUser(t *testing.T, s store.Store, name, email string, at time.Time) domain.User {
	t.Helper()
	u := NewUser(name, email, at)
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := s.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	alice := mustCreateUser(t, s, "alice", "Shared@Example.com", base)
	mustCreateUser(t, s, "bob", "shared@example.com", base.Add(time.Minute))

	err = s.Users().CreateUser(ctx, NewUser("ALICE", "other@example.com", base.Add(2*time.Minute)))
	require.ErrorIs(t, err, store.ErrAlreadyExists, "user names are unique ignoring case")

	got, err := s.Users().GetUserByNormalizedEmail(ctx, "SHARED@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID, "earliest user wins for a shared email")
	require.Equal(t, "Shared@Example.com", got.Email)
	require.True(t, got.EmailConfirmed)
	require.True(t, got.LockoutEnabled)
	require.Nil(t, got.LockoutEnd)
	require.Nil(t, got.AuthenticatorKey)
	require.True(t, got.CreatedAt.Equal(base))

	_, err = s.Users().GetUserByNormalizedEmail(ctx, "NOBODY@EXAMPLE.COM")
	require.ErrorIs(t, err, store.ErrNotFound)

	byName, err := s.Users().GetUserByNormalizedName(ctx, "BOB")
	require.NoError(t, err)
	require.Equal(t, "bob", byName.UserName)

	_, err = s.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("update with concurrency stamp", func(t *testing.T) {
		u, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)

		end := base.Add(time.Hour)
		key := "JBSWY3DPEHPK3PXP"
		old := u.ConcurrencyStamp
		u.ConcurrencyStamp = uuid.NewString()
		u.AccessFailedCount = 3
		u.LockoutEnd = &end
		u.AuthenticatorKey = &key
		u.TwoFactorEnabled = true
		u.UpdatedAt = base.Add(time.Second)
		require.NoError(t, s.Users().UpdateUser(ctx, u, old))

		got, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, 3, got.AccessFailedCount)
		require.NotNil(t, got.LockoutEnd)
		require.True(t, got.LockoutEnd.Equal(end))
		require.Equal(t, key, *got.AuthenticatorKey)
		require.True(t, got.TwoFactorEnabled)

		stale := got
		stale.AccessFailedCount = 0
		require.ErrorIs(t, s.Users().UpdateUser(ctx, stale, old), store.ErrConcurrencyFailure)

		ghost := NewUser("ghost", "ghost@example.com", base)
		require.ErrorIs(t, s.Users().UpdateUser(ctx, ghost, ghost.ConcurrencyStamp), store.ErrNotFound)
	})

	n, err = s.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	page, err := s.Users().ListUsers(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "bob", page[0].UserName)
}

func testRoles(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "carol", "carol@example.com", base)

	_, err := s.Roles().GetRoleByNormalizedName(ctx, domain.RoleAdmin)
	require.ErrorIs(t, err, store.ErrNotFound)

	admin := domain.Role{ID: idx.New().String(), Name: "ADMIN", NormalizedName: "ADMIN", ConcurrencyStamp: uuid.NewString(), CreatedAt: base}
	require.NoError(t, s.Roles().CreateRole(ctx, admin))
	dup := admin
	dup.ID = idx.New().String()
	require.ErrorIs(t, s.Roles().CreateRole(ctx, dup), store.ErrAlreadyExists)

	editor := domain.Role{ID: idx.New().String(), Name: "Editor", NormalizedName: "EDITOR", ConcurrencyStamp: uuid.NewString(), CreatedAt: base}
	require.NoError(t, s.Roles().CreateRole(ctx, editor))

	in, err := s.Roles().IsUserInRole(ctx, u.ID, "ADMIN")
	require.NoError(t, err)
	require.False(t, in)

	require.NoError(t, s.Roles().AddUserToRole(ctx, u.ID, admin.ID))
	require.NoError(t, s.Roles().AddUserToRole(ctx, u.ID, admin.ID), "adding twice is a no-op")
	require.NoError(t, s.Roles().AddUserToRole(ctx, u.ID, editor.ID))

	in, err = s.Roles().IsUserInRole(ctx, u.ID, "ADMIN")
	require.NoError(t, err)
	require.True(t, in)

	names, err := s.Roles().ListRolesForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"ADMIN", "Editor"}, names)

	admins, err := s.Roles().ListUsersInRole(ctx, "ADMIN")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, u.ID, admins[0].ID)

	roles, err := s.Roles().ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	require.NoError(t, s.Roles().RemoveUserFromRole(ctx, u.ID, admin.ID))
	in, err = s.Roles().IsUserInRole(ctx, u.ID, "ADMIN")
	require.NoError(t, err)
	require.False(t, in)
}

func testTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "dave", "dave@example.com", base)

	tok := domain.UserToken{
		ID: idx.New().String(), UserID: u.ID, Purpose: domain.TokenEmailConfirmation,
		TokenHash: "hash-1", ExpiresAt: base.Add(3 * time.Hour), CreatedAt: base,
	}
	require.NoError(t, s.Tokens().CreateUserToken(ctx, tok))

	err := s.Tokens().ConsumeUserToken(ctx, u.ID, domain.TokenPasswordReset, "hash-1", base)
	require.ErrorIs(t, err, store.ErrNotFound, "purpose must match")

	err = s.Tokens().ConsumeUserToken(ctx, u.ID, domain.TokenEmailConfirmation, "hash-1", base.Add(4*time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound, "expired tokens do not match")

	require.NoError(t, s.Tokens().ConsumeUserToken(ctx, u.ID, domain.TokenEmailConfirmation, "hash-1", base.Add(time.Hour)))
	err = s.Tokens().ConsumeUserToken(ctx, u.ID, domain.TokenEmailConfirmation, "hash-1", base.Add(time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound, "tokens are single use")

	for i, exp := range []time.Time{base.Add(-time.Hour), base.Add(-time.Minute), base.Add(time.Hour)} {
		require.NoError(t, s.Tokens().CreateUserToken(ctx, domain.UserToken{
			ID: idx.New().String(), UserID: u.ID, Purpose: domain.TokenPasswordReset,
			TokenHash: fmt.Sprintf("reset-%d", i), ExpiresAt: exp, CreatedAt: base.Add(-2 * time.Hour),
		}))
	}
	n, err := s.Tokens().DeleteExpiredUserTokens(ctx, base)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, s.Tokens().DeleteUserTokens(ctx, u.ID, domain.TokenPasswordReset))
	err = s.Tokens().ConsumeUserToken(ctx, u.ID, domain.TokenPasswordReset, "reset-2", base)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRecoveryCodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "erin", "erin@example.com", base)

	require.NoError(t, s.RecoveryCodes().ReplaceRecoveryCodes(ctx, u.ID, []string{"a", "b", "c"}))
	n, err := s.RecoveryCodes().CountRecoveryCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	ok, err := s.RecoveryCodes().ConsumeRecoveryCode(ctx, u.ID, "b")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.RecoveryCodes().ConsumeRecoveryCode(ctx, u.ID, "b")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RecoveryCodes().ReplaceRecoveryCodes(ctx, u.ID, []string{"x"}))
	ok, err = s.RecoveryCodes().ConsumeRecoveryCode(ctx, u.ID, "a")
	require.NoError(t, err)
	require.False(t, ok, "replaced codes are gone")

	require.NoError(t, s.RecoveryCodes().DeleteRecoveryCodes(ctx, u.ID))
	n, err = s.RecoveryCodes().CountRecoveryCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

// NewPoll returns an open poll owned by ownerID with the given labels.
func NewPoll(ownerID, title string, createdAt time.Time, labels ...string) domain.Poll {
	p := domain.Poll{
		ID:         idx.NewAt(createdAt).String(),
		OwnerID:    ownerID,
		Title:      title,
		MaxChoices: 1,
		Status:     domain.PollOpen,
		CreatedAt:  createdAt,
	}
	for i, l := range labels {
		p.Options = append(p.Options, domain.PollOption{ID: idx.New().String(), PollID: p.ID, Label: l, Position: i})
	}
	return p
}

func testPollsAndVotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustCreateUser(t, s, "frank", "frank@example.com", base)
	voter := mustCreateUser(t, s, "grace", "grace@example.com", base)

	lunch := NewPoll(owner.ID, "Lunch", base, "Noodles", "Dumplings", "Hotpot")
	lunch.MaxChoices = 2
	closes := base.Add(time.Hour)
	lunch.ClosesAt = &closes
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.Polls().CreatePoll(ctx, lunch) }))

	other := NewPoll(voter.ID, "Weekend", base.Add(time.Minute), "Hike", "Film")
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.Polls().CreatePoll(ctx, other) }))

	got, err := s.Polls().GetPoll(ctx, lunch.ID)
	require.NoError(t, err)
	require.Equal(t, "Lunch", got.Title)
	require.Equal(t, 2, got.MaxChoices)
	require.Equal(t, domain.PollOpen, got.Status)
	require.NotNil(t, got.ClosesAt)
	require.Len(t, got.Options, 3)
	require.Equal(t, "Noodles", got.Options[0].Label)
	require.Equal(t, "Hotpot", got.Options[2].Label)

	_, err = s.Polls().GetPoll(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	vote := domain.Vote{
		ID: idx.New().String(), PollID: lunch.ID, UserID: voter.ID,
		OptionIDs: []string{lunch.Options[2].ID, lunch.Options[0].ID}, CreatedAt: base,
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.Votes().CreateVote(ctx, vote) }))

	again := vote
	again.ID = idx.New().String()
	again.OptionIDs = []string{lunch.Options[1].ID}
	err = s.WithTx(ctx, func(tx store.Tx) error { return tx.Votes().CreateVote(ctx, again) })
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	ownVote := domain.Vote{ID: idx.New().String(), PollID: lunch.ID, UserID: owner.ID, OptionIDs: []string{lunch.Options[0].ID}, CreatedAt: base}
	require.NoError(t, s.Votes().CreateVote(ctx, ownVote))

	stored, err := s.Votes().GetVote(ctx, lunch.ID, voter.ID)
	require.NoError(t, err)
	require.Equal(t, []string{lunch.Options[0].ID, lunch.Options[2].ID}, stored.OptionIDs, "choices ordered by position")

	_, err = s.Votes().GetVote(ctx, other.ID, voter.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	tallies, voters, err := s.Votes().Tally(ctx, lunch.ID)
	require.NoError(t, err)
	require.Equal(t, 2, voters)
	require.Len(t, tallies, 3)
	require.Equal(t, []int{2, 0, 1}, []int{tallies[0].Votes, tallies[1].Votes, tallies[2].Votes})
	require.Equal(t, "Dumplings", tallies[1].Label)

	open, err := s.Polls().ListPolls(ctx, store.PollFilter{Status: domain.PollOpen})
	require.NoError(t, err)
	require.Len(t, open, 2)
	require.Equal(t, other.ID, open[0].ID, "newest first")
	require.Equal(t, 2, open[1].Voters)
	require.Empty(t, open[1].Options)

	mine, err := s.Polls().ListPolls(ctx, store.PollFilter{OwnerID: owner.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	n, err := s.Polls().CloseExpiredPolls(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = s.Polls().CloseExpiredPolls(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err = s.Polls().GetPoll(ctx, lunch.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PollClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
	require.True(t, got.ClosedAt.Equal(closes))

	require.ErrorIs(t, s.Polls().ClosePoll(ctx, lunch.ID, base), store.ErrNotFound, "already closed")
	require.NoError(t, s.Polls().ClosePoll(ctx, other.ID, base.Add(time.Hour)))

	closed, err := s.Polls().ListPolls(ctx, store.PollFilter{Status: domain.PollClosed, Limit: 1})
	require.NoError(t, err)
	require.Len(t, closed, 1)

	require.NoError(t, s.Polls().DeletePoll(ctx, lunch.ID))
	require.ErrorIs(t, s.Polls().DeletePoll(ctx, lunch.ID), store.ErrNotFound)
	_, err = s.Votes().GetVote(ctx, lunch.ID, voter.ID)
	require.ErrorIs(t, err, store.ErrNotFound, "votes cascade with the poll")
}

func testSigningKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	far := base.Add(24 * time.Hour)

	for i, kid := range []string{"k1", "k2", "k3"} {
		require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
			ID: idx.New().String(), Kid: kid, Algorithm: "EdDSA",
			PrivateKeyEncrypted: []byte{0x01, 0x02, byte(i)},
			CreatedAt:           base.Add(time.Duration(i) * time.Minute),
			ExpiresAt:           far,
		}))
	}

	require.NoError(t, s.SigningKeys().RetireSigningKey(ctx, "k1", base, base.Add(time.Hour)))
	require.ErrorIs(t, s.SigningKeys().RetireSigningKey(ctx, "k1", base, base.Add(time.Hour)), store.ErrNotFound)

	active, err := s.SigningKeys().ListActiveSigningKeys(ctx, base)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "k3", active[0].Kid, "newest first")
	require.Equal(t, []byte{0x01, 0x02, 0x02}, active[0].PrivateKeyEncrypted)

	all, err := s.SigningKeys().ListAllSigningKeys(ctx, base)
	require.NoError(t, err)
	require.Len(t, all, 3)

	all, err = s.SigningKeys().ListAllSigningKeys(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2, "retired key past its grace period")

	n, err := s.SigningKeys().DeleteExpiredSigningKeys(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, NewUser("rolled", "rolled@example.com", base)); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = s.Users().GetUserByNormalizedName(ctx, "ROLLED")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.Error(t, tx.WithTx(ctx, func(store.Tx) error { return nil }), "nested transactions are refused")
		return tx.Users().CreateUser(ctx, NewUser("kept", "kept@example.com", base))
	}))
	_, err = s.Users().GetUserByNormalizedName(ctx, "KEPT")
	require.NoError(t, err)

	require.NoError(t, s.Ping(ctx))
}
