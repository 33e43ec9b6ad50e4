package urlstrategy

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrNoBaseURL indicates the strategy has no base to build URLs from
	ErrNoBaseURL = errors.New("media base url not configured")

	// ErrEmptyKey indicates an empty object key
	ErrEmptyKey = errors.New("empty object key")

	// ErrForeignURL indicates a URL that was not produced by the strategy
	ErrForeignURL = errors.New("url is not under the media base")
)

// URLStrategy maps object keys to public URLs and back.
// Implementations must be pure: the same key always yields the same URL.
type URLStrategy interface {
	// PublicURL returns the URL under which the object is served
	PublicURL(objectKey string) (string, error)

	// KeyFromURL recovers the object key from a URL returned by PublicURL
	KeyFromURL(publicURL string) (string, error)
}

// prefixMapper holds the shared base-prefix logic of the strategies.
type prefixMapper struct {
	base string
}

func newPrefixMapper(base string) prefixMapper {
	return prefixMapper{base: strings.TrimSuffix(strings.TrimSpace(base), "/")}
}

func (m prefixMapper) publicURL(objectKey string) (string, error) {
	if m.base == "" {
		return "", ErrNoBaseURL
	}
	if objectKey == "" {
		return "", ErrEmptyKey
	}
	return m.base + "/" + escapeKey(objectKey), nil
}

func (m prefixMapper) keyFromURL(publicURL string) (string, error) {
	if m.base == "" {
		return "", ErrNoBaseURL
	}
	raw := publicURL
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	rest, ok := strings.CutPrefix(raw, m.base+"/")
	if !ok || rest == "" {
		return "", ErrForeignURL
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", ErrForeignURL
	}
	return key, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
