package jwtx_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type memKeyStore struct {
	mu   sync.Mutex
	keys []jwtx.SigningKeyRecord
	now  time.Time
}

func (s *memKeyStore) ListAllSigningKeys(context.Context) ([]jwtx.SigningKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []jwtx.SigningKeyRecord
	for _, k := range s.keys {
		if k.ExpiresAt.After(s.now) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memKeyStore) ListActiveSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	all, _ := s.ListAllSigningKeys(ctx)
	var out []jwtx.SigningKeyRecord
	for _, k := range all {
		if k.RetiredAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memKeyStore) CreateSigningKey(_ context.Context, key jwtx.SigningKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *memKeyStore) RetireSigningKey(_ context.Context, kid string, retiredAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.keys {
		if s.keys[i].Kid == kid {
			s.keys[i].RetiredAt = &retiredAt
			s.keys[i].ExpiresAt = expiresAt
		}
	}
	return nil
}

func newSealer(t *testing.T) *cryptox.KeyCipher {
	t.Helper()
	kc, err := cryptox.NewKeyCipher([]byte("persistent-test"))
	require.NoError(t, err)
	return kc
}

func TestPersistentKeyManagerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := &memKeyStore{now: time.Now().UTC()}
	opts := jwtx.PersistentKeyManagerOptions{Store: store, Sealer: newSealer(t), Issuer: "toupiao", NumKeys: 2}

	first, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	require.Len(t, store.keys, 2)
	require.NotContains(t, string(store.keys[0].PrivateKeyEncrypted), "PRIVATE KEY")

	token, err := first.Sign(jwtx.NewClaims(jwtx.PurposeIdentity, "01USER", time.Hour, "toupiao", time.Now().UTC()))
	require.NoError(t, err)

	second, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	require.Len(t, store.keys, 2, "no new keys on restart")
	require.ElementsMatch(t, first.KIDs(), second.KIDs())

	_, err = second.Verify(token, jwtx.PurposeIdentity)
	require.NoError(t, err)
}

func TestPersistentKeyManagerWrongMasterKey(t *testing.T) {
	ctx := context.Background()
	store := &memKeyStore{now: time.Now().UTC()}

	_, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{Store: store, Sealer: newSealer(t), Issuer: "toupiao", NumKeys: 1})
	require.NoError(t, err)

	other, err := cryptox.NewKeyCipher([]byte("different"))
	require.NoError(t, err)
	_, err = jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{Store: store, Sealer: other, Issuer: "toupiao", NumKeys: 1})
	require.ErrorContains(t, err, "decrypt key")
}

func TestPersistentKeyManagerRotate(t *testing.T) {
	ctx := context.Background()
	store := &memKeyStore{now: time.Now().UTC()}

	km, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		Store: store, Sealer: newSealer(t), Issuer: "toupiao", NumKeys: 1, GracePeriod: 48 * time.Hour,
	})
	require.NoError(t, err)
	oldKID := km.KIDs()[0]

	token, err := km.Sign(jwtx.NewClaims(jwtx.PurposeIdentity, "01USER", time.Hour, "toupiao", time.Now().UTC()))
	require.NoError(t, err)

	n, err := km.Rotate(ctx, 24*time.Hour, time.Now().UTC())
	require.NoError(t, err)
	require.Zero(t, n, "fresh keys are not rotated")

	later := time.Now().UTC().Add(25 * time.Hour)
	n, err = km.Rotate(ctx, 24*time.Hour, later)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NotContains(t, km.KIDs(), oldKID)
	require.Len(t, store.keys, 2)

	for _, k := range store.keys {
		if k.Kid == oldKID {
			require.NotNil(t, k.RetiredAt)
			require.Equal(t, later.Add(48*time.Hour), k.ExpiresAt)
		}
	}

	_, err = km.Verify(token, jwtx.PurposeIdentity)
	require.NoError(t, err, "tokens from the retired key still verify")
}

func TestEphemeralManagerDoesNotRotate(t *testing.T) {
	km := newEphemeral(t, 1)
	n, err := km.Rotate(context.Background(), time.Nanosecond, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}
