package urlstrategy

// CDNStrategy generates URLs that point directly at a CDN or public bucket
// endpoint, e.g. https://cdn.example.com/media/news_1718000000123.jpg
type CDNStrategy struct {
	prefixMapper
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	return &CDNStrategy{prefixMapper: newPrefixMapper(cdnBaseURL)}
}

// BaseURL returns the normalized base without a trailing slash.
func (s *CDNStrategy) BaseURL() string {
	return s.base
}

// PublicURL creates a direct CDN URL for the object
func (s *CDNStrategy) PublicURL(objectKey string) (string, error) {
	return s.publicURL(objectKey)
}

// KeyFromURL strips the CDN base from a URL returned by PublicURL
func (s *CDNStrategy) KeyFromURL(publicURL string) (string, error) {
	return s.keyFromURL(publicURL)
}
