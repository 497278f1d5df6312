// Package media stores listing images and hands back the URL the listing keeps.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for content that is not an image.
var ErrUnsupportedType = errors.New("media: unsupported content type")

// ErrMalformedDataURI is returned by DecodeDataURI for strings it cannot parse.
var ErrMalformedDataURI = errors.New("media: malformed data uri")

// Uploader stores a file and returns a stable URL for it.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// Locator is implemented by uploaders whose URLs share one public base.
type Locator interface {
	PublicBase() string
}

// ObjectKey returns a fresh key under listings/ keeping the extension of name
// or, failing that, one derived from contentType.
func ObjectKey(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return "listings/" + uuid.NewString() + ext
}

// CheckImage rejects anything whose media type is not image/*.
func CheckImage(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return nil
}

// IsDataURI reports whether s looks like an inline data: URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// DecodeDataURI parses data:<mediatype>[;base64],<payload>.
func DecodeDataURI(s string) (contentType string, data []byte, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrMalformedDataURI
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, ErrMalformedDataURI
	}
	isBase64 := false
	if strings.HasSuffix(header, ";base64") {
		isBase64 = true
		header = strings.TrimSuffix(header, ";base64")
	}
	contentType = header
	if contentType == "" {
		contentType = "text/plain;charset=US-ASCII"
	}
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
		}
		return contentType, data, nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return contentType, []byte(unescaped), nil
}
