package feed

import (
	"errors"
	"fmt"
	"regexp"
)

// Watched resources. Each maps to one notification channel and one table.
const (
	ResourceTrades      = "trades"
	ResourceConfigs     = "configs"
	ResourceDecisions   = "decisions"
	ResourcePortfolios  = "portfolios"
	ResourceSuggestions = "suggestions"
	ResourceVotes       = "votes"
	ResourcePoints      = "points"
)

var validResources = map[string]bool{
	ResourceTrades:      true,
	ResourceConfigs:     true,
	ResourceDecisions:   true,
	ResourcePortfolios:  true,
	ResourceSuggestions: true,
	ResourceVotes:       true,
	ResourcePoints:      true,
}

// channelRegex matches: arena:{resource}
// Example: arena:suggestions
var channelRegex = regexp.MustCompile(`^arena:([a-z_]+)$`)

var (
	ErrInvalidChannel  = errors.New("feed: invalid channel name")
	ErrUnknownResource = errors.New("feed: unknown resource")
)

// Channel returns the notification channel name for a resource.
// Format: arena:{resource}
func Channel(resource string) (string, error) {
	if !validResources[resource] {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return "arena:" + resource, nil
}

// ParseChannel extracts and validates the resource from a channel name.
func ParseChannel(channel string) (string, error) {
	matches := channelRegex.FindStringSubmatch(channel)
	if matches == nil {
		return "", fmt.Errorf("%w: %s (expected arena:{resource})", ErrInvalidChannel, channel)
	}
	resource := matches[1]
	if !validResources[resource] {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return resource, nil
}

// Resources returns all watched resource names.
func Resources() []string {
	return []string{
		ResourceTrades,
		ResourceConfigs,
		ResourceDecisions,
		ResourcePortfolios,
		ResourceSuggestions,
		ResourceVotes,
		ResourcePoints,
	}
}
