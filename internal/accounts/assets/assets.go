// Package assets stores uploaded profile images and hands back the URL they
// are served from.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/google/uuid"
)

// Kind groups assets by what they are used for.
type Kind string

const (
	Avatars     Kind = "avatars"
	CoverImages Kind = "covers"
)

var (
	ErrEmptyAsset = errors.New("assets: empty asset")

	// ErrForeignURL is returned by Remove for URLs this host did not issue.
	ErrForeignURL = errors.New("assets: url not owned by this host")
)

// Host uploads assets and removes them again.
type Host interface {
	Upload(ctx context.Context, kind Kind, a domain.Asset) (string, error)
	Remove(ctx context.Context, url string) error
}

// objectKey builds "<kind>/<yyyy>/<mm>/<dd>/<uuid><ext>".
func objectKey(kind Kind, a domain.Asset, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s",
		kind, now.Year(), now.Month(), now.Day(), uuid.NewString(), extension(a))
}

// extension derives the object extension from the detected content type,
// never from the client's filename.
func extension(a domain.Asset) string {
	return imageTypes[a.ContentType]
}

// keyFromURL strips base from url and returns the object key, or
// ErrForeignURL if url does not live under base.
func keyFromURL(base, url string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}

	key := path.Clean(strings.TrimPrefix(url, prefix))
	if key == "." || strings.HasPrefix(key, "../") || key == ".." || strings.HasPrefix(key, "/") {
		return "", ErrForeignURL
	}
	return key, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
