package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/idx"
)

// SigningKeyRecord is a signing key as persisted by a KeyStore.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore is the persistence a KeyManager needs. It is kept here so jwtx
// does not depend on the application's store package.
type KeyStore interface {
	// ListAllSigningKeys returns unexpired keys, retired or not.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)
	// ListActiveSigningKeys returns keys that are neither retired nor expired.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error
}

// KeySealer encrypts private key material at rest.
type KeySealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type PersistentKeyManagerOptions struct {
	Store  KeyStore
	Sealer KeySealer

	Issuer  string
	NumKeys int
	Leeway  time.Duration

	// GracePeriod keeps retired keys verifiable, 30 days by default. It
	// should exceed the longest session lifetime.
	GracePeriod time.Duration
}

type persistence struct {
	store   KeyStore
	sealer  KeySealer
	grace   time.Duration
	numKeys int
}

// NewPersistentKeyManager loads stored keys, trusting every unexpired key
// for verification and signing with the active ones. Missing active keys are
// generated and stored until NumKeys are available.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil || opts.Sealer == nil {
		return nil, errors.New("jwtx: Store and Sealer are required")
	}
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * 24 * time.Hour
	}

	km := newKeyManager(opts.Issuer, opts.Leeway)
	km.persist = &persistence{
		store:   opts.Store,
		sealer:  opts.Sealer,
		grace:   opts.GracePeriod,
		numKeys: clampNumKeys(opts.NumKeys),
	}

	all, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: list signing keys: %w", err)
	}
	for _, rec := range all {
		signer, err := km.persist.open(rec)
		if err != nil {
			return nil, err
		}
		if err := km.KeySet.Add(signer.KID(), signer.Public()); err != nil {
			return nil, fmt.Errorf("jwtx: trust key %s: %w", rec.Kid, err)
		}
	}

	active, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: list active signing keys: %w", err)
	}
	for _, rec := range active {
		signer, err := km.persist.open(rec)
		if err != nil {
			return nil, err
		}
		if err := km.AddSigner(signer, rec.CreatedAt); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	for km.NumSigners() < km.persist.numKeys {
		if _, err := km.createStoredKey(ctx, now); err != nil {
			return nil, err
		}
	}
	return km, nil
}

func (p *persistence) open(rec SigningKeyRecord) (*Signer, error) {
	if rec.Algorithm != AlgorithmEdDSA {
		return nil, fmt.Errorf("jwtx: key %s has unsupported algorithm %q", rec.Kid, rec.Algorithm)
	}
	pemKey, err := p.sealer.Open(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: decrypt key %s: %w", rec.Kid, err)
	}
	return NewSigner(rec.Kid, pemKey)
}

func (km *KeyManager) createStoredKey(ctx context.Context, now time.Time) (*Signer, error) {
	pemKey, signer, err := generateSigner()
	if err != nil {
		return nil, err
	}
	sealed, err := km.persist.sealer.Seal(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: encrypt key: %w", err)
	}

	rec := SigningKeyRecord{
		ID:                  idx.NewAt(now).String(),
		Kid:                 signer.KID(),
		Algorithm:           AlgorithmEdDSA,
		PrivateKeyEncrypted: sealed,
		CreatedAt:           now,
		// Pushed out by RetireSigningKey; a key nobody retires expires
		// only after another grace period.
		ExpiresAt: now.Add(100 * 365 * 24 * time.Hour),
	}
	if err := km.persist.store.CreateSigningKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("jwtx: store key: %w", err)
	}
	if err := km.AddSigner(signer, now); err != nil {
		return nil, err
	}
	return signer, nil
}

// Rotate replaces active keys older than maxAge. Each stale key is retired
// with an expiry of now plus the grace period after its replacement has
// been stored. Ephemeral managers never rotate. It returns the number of
// keys rotated.
func (km *KeyManager) Rotate(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	if km.persist == nil || maxAge <= 0 {
		return 0, nil
	}

	rotated := 0
	for _, kid := range km.staleSigners(now.Add(-maxAge)) {
		if _, err := km.createStoredKey(ctx, now); err != nil {
			return rotated, err
		}
		if err := km.persist.store.RetireSigningKey(ctx, kid, now, now.Add(km.persist.grace)); err != nil {
			return rotated, fmt.Errorf("jwtx: retire key %s: %w", kid, err)
		}
		if err := km.RetireSignerByKid(kid); err != nil {
			return rotated, err
		}
		rotated++
	}
	return rotated, nil
}
