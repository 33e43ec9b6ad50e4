package urlstrategy

import "strings"

// AppRoutedStrategy serves media through the application itself, under a
// route such as /media. Used with the memory and fs blob stores, which have
// no public endpoint of their own.
type AppRoutedStrategy struct {
	prefixMapper
}

// NewAppRoutedStrategy creates a strategy rooted at mountPath, optionally
// prefixed with the public origin of the application.
func NewAppRoutedStrategy(origin, mountPath string) *AppRoutedStrategy {
	mountPath = "/" + strings.Trim(mountPath, "/")
	return &AppRoutedStrategy{prefixMapper: newPrefixMapper(strings.TrimSuffix(origin, "/") + mountPath)}
}

// PublicURL returns the application URL for the object
func (s *AppRoutedStrategy) PublicURL(objectKey string) (string, error) {
	return s.publicURL(objectKey)
}

// KeyFromURL recovers the key from an application media URL
func (s *AppRoutedStrategy) KeyFromURL(publicURL string) (string, error) {
	return s.keyFromURL(publicURL)
}
