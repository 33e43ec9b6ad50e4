package urlstrategy

import (
	"fmt"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// StrategyTypeCDN points URLs at an external CDN or bucket endpoint
	StrategyTypeCDN URLStrategyType = "cdn"

	// StrategyTypeAppRouted points URLs at the application's media route
	StrategyTypeAppRouted URLStrategyType = "app"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type       URLStrategyType
	CDNBaseURL string
	AppOrigin  string
	MountPath  string
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (URLStrategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.CDNBaseURL), nil

	case StrategyTypeAppRouted, "":
		mount := config.MountPath
		if mount == "" {
			mount = "/media"
		}
		return NewAppRoutedStrategy(config.AppOrigin, mount), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}
