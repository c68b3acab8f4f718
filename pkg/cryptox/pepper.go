package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the password pepper from path, creating the file with a
// fresh random value on first boot. It must be called before passwords are
// hashed; otherwise a process-local pepper is generated on first use.
func LoadPepper(path string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		value, err := randomPepper()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
			return fmt.Errorf("cryptox: write pepper: %w", err)
		}
		setPepper(value)
		return nil
	case err != nil:
		return fmt.Errorf("cryptox: read pepper: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return errors.New("cryptox: pepper file is empty")
	}
	setPepper(value)
	return nil
}

func setPepper(v string) {
	pepperMu.Lock()
	pepper = v
	pepperMu.Unlock()
}

func currentPepper() string {
	pepperMu.RLock()
	v := pepper
	pepperMu.RUnlock()
	if v != "" {
		return v
	}

	pepperMu.Lock()
	defer pepperMu.Unlock()
	if pepper == "" {
		generated, err := randomPepper()
		if err != nil {
			panic(err)
		}
		pepper = generated
	}
	return pepper
}

func randomPepper() (string, error) {
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
