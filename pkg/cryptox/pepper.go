package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoPepper is returned by HashPassword and VerifyPassword until LoadPepper
// has succeeded.
var ErrNoPepper = errors.New("cryptox: pepper not loaded")

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the pepper from file, generating and writing a new one
// when the file does not exist yet. Every digest depends on it, so callers
// should load it at startup and refuse to start on error.
func LoadPepper(file string) error {
	p, err := loadOrGeneratePepper(file)
	if err != nil {
		return fmt.Errorf("cryptox: load pepper from %s: %w", file, err)
	}
	if p == "" {
		return fmt.Errorf("cryptox: pepper file %s is empty", file)
	}

	pepperMu.Lock()
	pepper = p
	pepperMu.Unlock()
	return nil
}

func currentPepper() (string, error) {
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	if pepper == "" {
		return "", ErrNoPepper
	}
	return pepper, nil
}

func loadOrGeneratePepper(file string) (string, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}

	data, err := os.ReadFile(file)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	generated := base64.RawURLEncoding.EncodeToString(b)

	// O_EXCL so two processes starting together cannot end up with
	// different peppers
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		data, err := os.ReadFile(file)
		return strings.TrimSpace(string(data)), err
	}
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(generated); err != nil {
		_ = f.Close()
		return "", err
	}
	return generated, f.Close()
}
