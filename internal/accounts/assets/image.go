package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
)

// ErrNotImage is returned for uploads whose content is not a supported image.
var ErrNotImage = errors.New("assets: not a supported image")

// sniffLen is how much of a body http.DetectContentType looks at.
const sniffLen = 512

// imageTypes maps the accepted sniffed content types to the extension
// stored objects get. SVG is not accepted: it can carry script.
var imageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage sniffs the start of the body and replaces the client supplied
// content type with the detected one. The returned asset still yields the
// whole body.
func DetectImage(a domain.Asset) (domain.Asset, error) {
	if a.Body == nil {
		return a, ErrEmptyAsset
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(a.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return a, fmt.Errorf("assets: read upload: %w", err)
	}
	if n == 0 {
		return a, ErrEmptyAsset
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if _, ok := imageTypes[contentType]; !ok {
		return a, fmt.Errorf("%w: detected %s", ErrNotImage, contentType)
	}

	a.ContentType = contentType
	a.Body = io.MultiReader(bytes.NewReader(head), a.Body)
	return a, nil
}

// isImagePath reports whether a stored object name carries one of the
// extensions DetectImage hands out.
func isImagePath(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range imageTypes {
		if e == ext {
			return true
		}
	}
	return false
}
