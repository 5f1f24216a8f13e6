package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// swapPepper replaces the loaded pepper for one test.
func swapPepper(t *testing.T, p string) {
	t.Helper()
	pepperMu.Lock()
	old := pepper
	pepper = p
	pepperMu.Unlock()
	t.Cleanup(func() {
		pepperMu.Lock()
		pepper = old
		pepperMu.Unlock()
	})
}

func TestLoadPepper_GeneratesAndPersists(t *testing.T) {
	swapPepper(t, "")
	file := filepath.Join(t.TempDir(), "secrets", "pepper")

	require.NoError(t, LoadPepper(file))
	first, err := currentPepper()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	// A restart reads the same pepper back, so old digests still verify
	swapPepper(t, "")
	require.NoError(t, LoadPepper(file))
	second, err := currentPepper()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.NoError(t, VerifyPassword("hunter2", hash))
}

func TestLoadPepper_ReadsExistingFile(t *testing.T) {
	swapPepper(t, "")
	file := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(file, []byte("  fixed-pepper\n"), 0600))

	require.NoError(t, LoadPepper(file))
	p, err := currentPepper()
	require.NoError(t, err)
	require.Equal(t, "fixed-pepper", p)
}

func TestLoadPepper_Errors(t *testing.T) {
	dir := t.TempDir()
	notDir := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(notDir, []byte("x"), 0600))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0600))

	tests := []struct {
		name string
		file string
	}{
		{"parent is a file", filepath.Join(notDir, "pepper")},
		{"empty file", empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swapPepper(t, "kept")
			require.Error(t, LoadPepper(tt.file))

			// A failed load leaves the previous pepper in place
			p, err := currentPepper()
			require.NoError(t, err)
			require.Equal(t, "kept", p)
		})
	}
}

func TestHashPassword_WithoutPepper(t *testing.T) {
	swapPepper(t, "hashing-pepper")
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	swapPepper(t, "")
	_, err = HashPassword("hunter2")
	require.ErrorIs(t, err, ErrNoPepper)
	require.ErrorIs(t, VerifyPassword("hunter2", hash), ErrNoPepper)
}
