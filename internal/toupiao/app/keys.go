package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
)

// InitSessionKeys creates the KeyManager that signs session, two-factor and
// remember-this-browser cookies.
//
// Storage modes:
//   - "ephemeral": keys live in memory only. Every user is signed out when
//     the process restarts.
//   - "persistent": keys are sealed with the master key and stored in the
//     database, so sessions survive restarts. Housekeeping rotates them.
func InitSessionKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	switch cfg.KeyStorageMode {
	case "persistent":
		sealer, err := cryptox.LoadKeyCipher(cfg.MasterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key: %w", err)
		}
		if sealer.Ephemeral {
			logger.Warn("no master key configured, persisted signing keys will not be readable after a restart",
				"env", cryptox.MasterKeyEnv,
			)
		}

		logger.Info("initializing persistent key manager",
			"num_keys", cfg.NumKeys,
			"grace_period", cfg.KeyGracePeriod,
		)
		km, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:       store.NewKeyStoreAdapter(db),
			Sealer:      sealer,
			Issuer:      cfg.SessionIssuer,
			NumKeys:     cfg.NumKeys,
			GracePeriod: cfg.KeyGracePeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}
		logger.Info("persistent signing keys loaded",
			"num_keys", km.NumSigners(),
			"issuer", cfg.SessionIssuer,
		)
		return km, nil

	case "ephemeral":
		fallthrough
	default:
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Issuer:  cfg.SessionIssuer,
			NumKeys: cfg.NumKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}
		logger.Info("generated ephemeral signing keys",
			"num_keys", km.NumSigners(),
			"issuer", cfg.SessionIssuer,
		)
		logger.Warn("existing sessions are invalid after a restart in ephemeral key mode")
		return km, nil
	}
}
