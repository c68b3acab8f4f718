package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestKeyCipherRoundTrip(t *testing.T) {
	kc, err := cryptox.NewKeyCipher([]byte("test-master-key"))
	require.NoError(t, err)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	sealed1, err := kc.Seal(pemKey)
	require.NoError(t, err)
	sealed2, err := kc.Seal(pemKey)
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "nonce must differ per seal")

	opened, err := kc.Open(sealed1)
	require.NoError(t, err)
	require.Equal(t, pemKey, opened)
}

func TestKeyCipherRejectsTampering(t *testing.T) {
	kc, err := cryptox.NewKeyCipher([]byte("test-master-key"))
	require.NoError(t, err)

	sealed, err := kc.Seal([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = kc.Open(sealed)
	require.Error(t, err)

	_, err = kc.Open([]byte("short"))
	require.ErrorIs(t, err, cryptox.ErrCiphertextTooShort)
}

func TestKeyCipherWrongKey(t *testing.T) {
	a, err := cryptox.NewKeyCipher([]byte("key-a"))
	require.NoError(t, err)
	b, err := cryptox.NewKeyCipher([]byte("key-b"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("secret"))
	require.NoError(t, err)
	_, err = b.Open(sealed)
	require.Error(t, err)
}

func TestLoadKeyCipher(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

		fromFile, err := cryptox.LoadKeyCipher(path)
		require.NoError(t, err)
		require.False(t, fromFile.Ephemeral)

		direct, err := cryptox.NewKeyCipher([]byte("from-file"))
		require.NoError(t, err)
		sealed, err := direct.Seal([]byte("x"))
		require.NoError(t, err)
		opened, err := fromFile.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, []byte("x"), opened)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := cryptox.LoadKeyCipher(filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(cryptox.MasterKeyEnv, "from-env")
		kc, err := cryptox.LoadKeyCipher("")
		require.NoError(t, err)
		require.False(t, kc.Ephemeral)
	})

	t.Run("ephemeral", func(t *testing.T) {
		t.Setenv(cryptox.MasterKeyEnv, "")
		kc, err := cryptox.LoadKeyCipher("")
		require.NoError(t, err)
		require.True(t, kc.Ephemeral)
	})
}
