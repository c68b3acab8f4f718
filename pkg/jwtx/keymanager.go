package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
)

const (
	defaultNumKeys = 3
	maxNumKeys     = 10
)

// KeyManager signs tokens with one of several active keys and verifies
// against every key in its KeySet.
type KeyManager struct {
	KeySet   *KeySet
	verifier *Verifier

	mu      sync.RWMutex
	signers []*Signer
	created map[string]time.Time

	persist *persistence
}

// KeyManagerOptions configures an in-memory KeyManager.
type KeyManagerOptions struct {
	// Issuer is written to and required on every token.
	Issuer string

	// NumKeys active signing keys, 3 by default and at most 10.
	NumKeys int

	// Leeway tolerated on exp and nbf.
	Leeway time.Duration
}

func clampNumKeys(n int) int {
	if n <= 0 {
		return defaultNumKeys
	}
	return min(n, maxNumKeys)
}

func newKeyManager(issuer string, leeway time.Duration) *KeyManager {
	ks := NewKeySet()
	return &KeyManager{
		KeySet:   ks,
		verifier: NewVerifier(ks, issuer, leeway),
		created:  make(map[string]time.Time),
	}
}

// NewEphemeralKeyManager generates keys that only live in memory, so every
// session is invalidated on restart.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	km := newKeyManager(opts.Issuer, opts.Leeway)
	now := time.Now().UTC()
	for i := range clampNumKeys(opts.NumKeys) {
		_, signer, err := generateSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer, now); err != nil {
			return nil, err
		}
	}
	return km, nil
}

func generateSigner() ([]byte, *Signer, error) {
	kid, err := generateKeyID()
	if err != nil {
		return nil, nil, err
	}
	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, nil, err
	}
	signer, err := NewSigner(kid, pemKey)
	if err != nil {
		return nil, nil, err
	}
	return pemKey, signer, nil
}

func generateKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: generate kid: %w", err)
	}
	return "toupiao-" + token, nil
}

// Sign signs claims with a randomly chosen active key.
func (km *KeyManager) Sign(claims Claims) (string, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if len(km.signers) == 0 {
		return "", errors.New("jwtx: no active signing key")
	}
	return km.signers[rand.IntN(len(km.signers))].Sign(claims)
}

// Verify checks token against every known key and the expected purpose.
func (km *KeyManager) Verify(token, purpose string) (*Claims, error) {
	return km.verifier.Verify(token, purpose)
}

func (km *KeyManager) IsReady() bool {
	return km.NumSigners() > 0 && km.KeySet.Len() > 0
}

func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// KIDs lists the active signing key ids.
func (km *KeyManager) KIDs() []string {
	km.mu.RLock()
	defer km.mu.RUnlock()
	kids := make([]string, 0, len(km.signers))
	for _, s := range km.signers {
		kids = append(kids, s.KID())
	}
	return kids
}

// AddSigner makes signer active and trusted for verification.
func (km *KeyManager) AddSigner(signer *Signer, createdAt time.Time) error {
	if signer == nil {
		return errors.New("jwtx: nil signer")
	}
	if err := km.KeySet.Add(signer.KID(), signer.Public()); err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	km.signers = append(km.signers, signer)
	km.created[signer.KID()] = createdAt
	return nil
}

// RetireSignerByKid stops signing with kid. The public key stays in the
// KeySet so outstanding tokens keep verifying.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return errors.New("jwtx: cannot retire the last signing key")
	}
	for i, s := range km.signers {
		if s.KID() == kid {
			km.signers = append(km.signers[:i:i], km.signers[i+1:]...)
			delete(km.created, kid)
			return nil
		}
	}
	return fmt.Errorf("jwtx: signer %q not found", kid)
}

// staleSigners returns active kids created before cutoff, oldest first.
func (km *KeyManager) staleSigners(cutoff time.Time) []string {
	km.mu.RLock()
	defer km.mu.RUnlock()

	var stale []string
	for _, s := range km.signers {
		if km.created[s.KID()].Before(cutoff) {
			stale = append(stale, s.KID())
		}
	}
	return stale
}
