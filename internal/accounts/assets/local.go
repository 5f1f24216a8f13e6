package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
)

// LocalHost keeps assets on the local filesystem and serves them itself. It
// suits development and single node deployments.
type LocalHost struct {
	Dir     string
	BaseURL string // e.g. "http://localhost:8080/media"

	now func() time.Time
}

func NewLocalHost(dir, baseURL string) (*LocalHost, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create %s: %w", dir, err)
	}
	return &LocalHost{Dir: dir, BaseURL: baseURL, now: time.Now}, nil
}

func (h *LocalHost) Upload(ctx context.Context, kind Kind, a domain.Asset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a, err := DetectImage(a)
	if err != nil {
		return "", err
	}

	key := objectKey(kind, a, h.now())
	dst := filepath.Join(h.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("assets: %w", err)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("assets: %w", err)
	}

	n, err := io.Copy(f, a.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmptyAsset
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	return joinURL(h.BaseURL, key), nil
}

func (h *LocalHost) Remove(_ context.Context, url string) error {
	key, err := keyFromURL(h.BaseURL, url)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(h.Dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets: %w", err)
	}
	return nil
}

// Handler serves stored files without directory listings. Mount it with
// http.StripPrefix. Files share the API origin, so nothing served here may
// render as a document.
func (h *LocalHost) Handler() http.Handler {
	files := http.FileServer(http.Dir(h.Dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
		if !isImagePath(r.URL.Path) {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", "attachment")
		}
		files.ServeHTTP(w, r)
	})
}
